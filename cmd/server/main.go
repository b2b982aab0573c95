package main

import (
	"github.com/skein-labs/skein/backend/internal/server"
	"github.com/skein-labs/skein/backend/internal/util"
	"github.com/skein-labs/skein/backend/pkg/logger"
	"github.com/skein-labs/skein/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
