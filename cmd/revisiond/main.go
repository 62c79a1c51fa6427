// revisiond - Version control for manuscript scene collections
//
//	revisiond daemon              Run the autosave daemon
//	revisiond save <description>  Create a manual save point
//	revisiond branch <name>       Create a named branch
//	revisiond switch <branch>     Activate a branch
//	revisiond merge <src> <dst>   Merge one branch into another
//	revisiond log                 Show snapshot history
//	revisiond diff <v1> <v2>      Diff two snapshots
//	revisiond restore <version>   Print a snapshot's scenes
//	revisiond cleanup [keep]      Enforce retention
//	revisiond status              Show store status
package main

import (
	"flag"
	"fmt"
	"os"

	"revisiond/internal/config"
	"revisiond/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (.toml, .yaml, .json)")
	manuscriptPath := flag.String("manuscript", "manuscript.json", "path to the scene parser's manuscript file")
	manuscriptID := flag.String("id", "", "manuscript id (default: taken from the manuscript file)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "revisiond",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	app, err := newApp(cfg, logger, *manuscriptPath, *manuscriptID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "revisiond: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "daemon":
		err = app.cmdDaemon()
	case "save":
		err = app.cmdSave(cmdArgs)
	case "branch":
		err = app.cmdBranch(cmdArgs)
	case "switch":
		err = app.cmdSwitch(cmdArgs)
	case "merge":
		err = app.cmdMerge(cmdArgs)
	case "log":
		err = app.cmdLog()
	case "diff":
		err = app.cmdDiff(cmdArgs)
	case "restore":
		err = app.cmdRestore(cmdArgs)
	case "cleanup":
		err = app.cmdCleanup(cmdArgs)
	case "status":
		err = app.cmdStatus()
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "revisiond: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`revisiond - Version control for manuscript scene collections

USAGE:
    revisiond [flags] <command> [args]

FLAGS:
    -config <path>      Config file (.toml, .yaml, .json)
    -manuscript <path>  Manuscript file maintained by the scene parser
                        (JSON array of scenes; default manuscript.json)
    -id <id>            Manuscript id (default: from the manuscript file)

COMMANDS:
    daemon                       Run the autosave daemon
    save <description>           Create a manual save point
    branch <name> [description]  Create a branch from the current scenes
    switch <branch>              Activate a branch by name or id
    merge <src> <dst> <desc>     Merge branch src into dst
    log                          Show snapshot history, newest first
    diff <v1> <v2>               Show scene changes between two snapshots
    restore <version>            Print a snapshot's scenes as JSON
    cleanup [keep]               Delete snapshots beyond the retention budget
    status                       Show branches and snapshot counts
    help                         Show this help message`)
}
