package main

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/gin-gonic/gin"
	"github.com/scusemua/offer-ranking/common/ranking/rankingtest"
)

var (
	options = Options{Port: 9090, Policy: PolicyEcho}
	version string // injected via ldflags at build time
)

func main() {
	flags, err := config.ValidateOptions(&options)
	if errors.Is(err, config.ErrPrintUsage) {
		flags.PrintDefaults()
		os.Exit(0)
	} else if err != nil {
		log.Fatal(err)
	}

	handler, err := policyHandler(options.Policy)
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(gin.ReleaseMode)

	server := rankingtest.NewServer(version)
	server.SetHandler(handler)
	server.SetDelay(time.Duration(options.DelayMs) * time.Millisecond)
	if options.Error != "" {
		server.RespondWith(options.Error)
	}

	if err = server.Serve(options.Port); err != nil {
		log.Fatalf("Stub ranking service failed to listen on port %d: %v", options.Port, err)
	}
}
