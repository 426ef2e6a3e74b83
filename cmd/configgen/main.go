package main

import (
	"flag"
	"log"

	"github.com/danmuck/zcnbind/internal/config"
)

func defaultPath(kind string) string {
	switch kind {
	case "bindhost":
		return "cmd/bindhost/config.toml"
	case "bindctl":
		return "cmd/bindctl/config.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}

func main() {
	kind := flag.String("kind", "bindhost", "config kind: bindhost|bindctl")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing bindhost config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != "bindhost" {
			log.Fatalf("validation is only supported for bindhost configs")
		}
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		cfg, err := config.LoadHostConfig(path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s (clients=%d burn_tickets=%d)", *kind, path, len(cfg.Clients), len(cfg.BurnTickets))
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
