package main

import "github.com/Scusemua/go-utils/config"

// Options are the command-line options of the stub ranking service.
type Options struct {
	config.LoggerOptions `yaml:",inline" json:"logger_options"`

	Port    int    `name:"port"     json:"port"     yaml:"port"     description:"Port on which the stub ranking service listens."`
	Policy  string `name:"policy"   json:"policy"   yaml:"policy"   description:"How hosts are ranked. One of 'echo', 'spread' (most free CPU first), or 'binpack' (least free CPU that fits first)."`
	DelayMs int    `name:"delay-ms" json:"delay-ms" yaml:"delay-ms" description:"Artificial delay, in milliseconds, before every response."`
	Error   string `name:"error"    json:"error"    yaml:"error"    description:"If non-empty, every response reports this error instead of a ranking."`
}
