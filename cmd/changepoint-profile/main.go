package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/changepoint/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file to import")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite profile store (required)")
		name       = flag.String("name", config.DefaultProfile, "Profile name to store the configuration under")
		list       = flag.Bool("list", false, "List stored profiles and exit")
		describe   = flag.String("description", "", "Free-text note stored with the profile")
		dryRun     = flag.Bool("dry-run", false, "Validate the YAML without writing it")
	)
	flag.Parse()

	if *sqliteFile == "" || (*yamlFile == "" && !*list) {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <run.yaml> -sqlite <profiles.db> [-name profile]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	store, err := config.NewSQLiteProvider(*sqliteFile, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening profile store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if *list {
		names, err := store.Profiles(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing profiles: %v\n", err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	cfg, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s: %s source, %s cost, penalty %v\n", *yamlFile, cfg.Source.Type, cfg.Detection.Cost, cfg.Detection.Penalty)

	if *dryRun {
		fmt.Println("DRY RUN complete - nothing written")
		return
	}

	if err := store.SaveProfileWithDescription(ctx, *name, *describe, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving profile: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Stored profile %q in %s\n", *name, *sqliteFile)
	fmt.Printf("Run it with: changepoint -config %s -profile %s\n", *sqliteFile, *name)
}
