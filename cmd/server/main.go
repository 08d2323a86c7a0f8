package main

import (
	"github.com/clash-vn/clasharena/internal/app/server"
	"github.com/clash-vn/clasharena/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	logging.Fatal("Battle server exited: ", zap.Error(
		server.NewServer().Start(),
	))
}
