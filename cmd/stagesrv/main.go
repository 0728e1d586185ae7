package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/nasa-jpl/mercury/config"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "stagesrv.yml"
)

func setupconfig() config.Config {
	c, err := config.Load(ConfigFileName)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	return c
}

func root() {
	str := `stagesrv drives PI Mercury stepper stages and exposes an HTTP interface to them.
This enables a server-client architecture, and the clients can leverage the
excellent HTTP libraries for any programming language.

Usage:
	stagesrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `stagesrv is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

Without any stages, the server will close immediately and display an error.

Each stage has a name, which is the {axis} in its routes, and
	port        serial device, e.g. /dev/ttyUSB0 or COM3
	baud_rate   default 9600, stages on one port must agree
	address     1-based address of the stage on the bus
	stage_type  "translation" or "rotation"
	step_size   micrometers or degrees per step, may be "a/b"
	unit        unit for positions and bare amounts, e.g. mm, um, deg
	logic       limit switch polarity set on initialize, "", "low", "high"

Routes are served under /stages, e.g.
	POST /stages/axis/x/initialize
	POST /stages/axis/x/pos?relative=true   {"str": "1mm"}
	GET  /stages/axis/x/pos
	POST /stages/axis/x/edge                {"int": 1}
GET /endpoints lists them all.

Set mock: true to run against simulated stages.`
	fmt.Println(str)
}

func mkconf(c config.Config) {
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = config.Write(f, c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf(c config.Config) {
	err := config.Write(os.Stdout, c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("stagesrv version %v\n", Version)
}

func run(c config.Config) {
	logger := log.New(os.Stderr, "mercury ", log.LstdFlags)
	stages, err := config.Build(c, logger, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer stages.Close()
	mux := BuildMux(stages)
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	c := setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf(c)
		return
	case "conf":
		printconf(c)
		return
	case "run":
		run(c)
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
