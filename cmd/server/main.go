package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/mynet1982/audiogridder/pkg/config"
	"github.com/mynet1982/audiogridder/pkg/plugin"
	"github.com/mynet1982/audiogridder/pkg/worker"
)

func main() {
	var addr string
	flag.StringVar(&addr, "addr", "0.0.0.0:55056", "address to listen on for sessions")
	var configPath string
	flag.StringVar(&configPath, "config", "audiogridderserver.json", "path to the server config")

	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // flushes buffer, if any

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	catalog := plugin.NewVST2Catalog(logger, cfg.PluginPaths)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", addr), zap.Error(err))
	}
	logger.Info("listening", zap.String("addr", addr))

	for {
		conn, err := lis.Accept()
		if err != nil {
			logger.Error("accept failed", zap.Error(err))
			return
		}
		go serveSession(logger, catalog, cfg, conn)
	}
}

// serveSession reads the session header line the setup handshake leaves on
// the socket and hands the connection to a worker.
func serveSession(logger *zap.Logger, catalog plugin.Catalog, cfg *config.Config, conn net.Conn) {
	br := bufio.NewReader(conn)
	var p worker.Params
	var double int
	_, err := fmt.Fscanln(br,
		&p.ChannelsIn, &p.ChannelsOut, &p.ChannelsSC, &p.ActiveChannels,
		&p.SampleRate, &p.BlockSize, &double)
	if err != nil {
		logger.Error("bad session header", zap.Error(err))
		conn.Close()
		return
	}
	p.DoublePrecision = double != 0

	w := worker.New(logger, catalog, cfg)
	w.Init(&headerConn{Conn: conn, br: br}, p)
	w.Run()
}

// headerConn lets the worker keep reading through the buffered reader the
// header was parsed with.
type headerConn struct {
	net.Conn
	br *bufio.Reader
}

func (c *headerConn) Read(p []byte) (int, error) {
	return c.br.Read(p)
}
