// Command flux-server catalogues a media library into a sqlite index
// and serves it over HTTP.
package main

import (
	"fmt"
	"log"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/erikbos/flux-server/config"
)

// version is the application and schema version.
const version = "1.0.0"

const usage = `usage: flux-server <command> [flags]

commands:
  serve                        serve the index over HTTP
  index create                 initialize a new index
  index add <target>...        add records to the index
  index rm <record-id>...      remove records from the index
  index show                   list the records of the index
  index gc                     remove orphaned thumbnails
  user create <name>           create a user
  user promote <name>          grant a user the admin flag
  user password <name>         set a user's password
  user delete <name>           delete a user

global flags:
  -c, --config string          config file
  -i, --index-location string  index directory (default ".flux")
  -v, --verbose                verbose output
`

// globalFlags registers the flags every subcommand accepts.
func globalFlags(fs *flag.FlagSet) (configFile, indexLocation *string, verbose *bool) {
	configFile = fs.StringP("config", "c", "", "config file")
	indexLocation = fs.StringP("index-location", "i", "", "index directory")
	verbose = fs.BoolP("verbose", "v", false, "verbose output")
	return
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig(configFile, indexLocation string) *config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("cannot load config: %s", err)
	}
	if indexLocation != "" {
		cfg.IndexLocation = indexLocation
	}
	return cfg
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "index":
		runIndex(os.Args[2:])
	case "user":
		runUser(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}
