// Command craft2 serves voxel volumes over HTTP and exports their GPU buffers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/lwansbrough/craft2/craft"
	"github.com/lwansbrough/craft2/server"
	"github.com/lwansbrough/craft2/storage"

	// storage engines available to the server
	_ "github.com/lwansbrough/craft2/storage/badger"
	_ "github.com/lwansbrough/craft2/storage/blob"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Address for http communication; overrides the config file when set.
	httpAddress = flag.String("http", "", "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")
)

const helpMessage = `
craft2 serves sparse voxel octree volumes for GPU rendering

Usage: craft2 [options] <command>

      -http       =string   Address for HTTP communication (default from config).
      -cpuprofile =string   Write CPU profile to this file.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help
	serve  <config.toml>
	export <config.toml> <volume> <file> [format=gpu|octree]
	token  <config.toml> <user>
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		craft.SetLevel(craft.DebugLevel)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	// Capture ctrl+c and other interrupts.  Serve shuts down gracefully when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := DoCommand(ctx, craft.Command(flag.Args())); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(ctx context.Context, cmd craft.Command) error {
	switch cmd.Name() {
	case "about":
		fmt.Printf("craft2 %s, snapshot format %s\n", craft.Version, craft.SnapshotVersion)
		fmt.Printf("Storage engines: %s\n", storage.EnginesAvailable())
		return nil
	case "serve":
		return DoServe(ctx, cmd)
	case "export":
		return DoExport(ctx, cmd)
	case "token":
		return DoToken(cmd)
	case "":
		return fmt.Errorf("blank command")
	default:
		return fmt.Errorf("unknown command %q, try 'craft2 help'", cmd.Name())
	}
}

func loadConfig(cmd craft.Command) (*server.Config, error) {
	var configPath string
	cmd.CommandArgs(&configPath)
	if configPath == "" {
		return nil, fmt.Errorf("%s command must be followed by the path to the TOML configuration file", cmd.Name())
	}
	return server.LoadConfig(configPath)
}

// DoServe loads stored volumes and serves HTTP until interrupted.
func DoServe(ctx context.Context, cmd craft.Command) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if *httpAddress != "" {
		config.Server.HTTPAddress = *httpAddress
	}
	config.Logging.SetLogger()
	defer craft.Shutdown()

	s, err := server.New(*config)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.LoadVolumes(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// DoExport writes the GPU buffer or raw octree of a stored volume to a file.
func DoExport(ctx context.Context, cmd craft.Command) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var configPath, name, filename string
	cmd.CommandArgs(&configPath, &name, &filename)
	if name == "" || filename == "" {
		return fmt.Errorf("export command needs <config.toml> <volume> <file>")
	}
	format, found := cmd.Parameter(craft.KeyFormat)
	if !found {
		format = "gpu"
	}
	if format != "gpu" && format != "octree" {
		return fmt.Errorf("unknown export format %q, use gpu or octree", format)
	}

	store, _, err := storage.Open(config.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	snap, err := storage.Snapshots{Store: store}.Load(ctx, name)
	if err != nil {
		return err
	}
	v, err := snap.Volume()
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	var n int64
	if format == "gpu" {
		n, err = v.WriteTo(f)
	} else {
		n, err = v.Data.WriteTo(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("unable to write %s: %v", filename, err)
	}
	fmt.Printf("Wrote %s %s buffer of volume %q to %s\n", humanize.Bytes(uint64(n)), format, name, filename)
	return nil
}

// DoToken prints a JWT for a user signed with the configured secret key.
func DoToken(cmd craft.Command) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var configPath, user string
	cmd.CommandArgs(&configPath, &user)
	if user == "" {
		return fmt.Errorf("token command needs <config.toml> <user>")
	}
	token, err := server.GenerateJWT(config.Auth.SecretKey, user)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
