package main

import (
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/urfave/cli"
)

func setupLogging(ctx *cli.Context) {
	logger.SetLevel(logger.LevelWarn)

	if ctx.GlobalBool("v") {
		logger.SetLevel(logger.LevelInfo)
	}

	if ctx.GlobalBool("vv") {
		logger.SetLevel(logger.LevelDebug)
	}
}
