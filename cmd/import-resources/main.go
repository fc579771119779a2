// Command import-resources pushes a resources YAML file to a running API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"roombook/internal/client"
	"roombook/internal/config"
	"roombook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type resourcesFile struct {
	Resources []models.Resource `yaml:"resources"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	var (
		path    = flag.String("file", "configs/resources.yaml", "path to resources yaml")
		baseURL = flag.String("url", "http://localhost:8080", "API base URL")
		apiKey  = flag.String("key", os.Getenv("ROOMBOOK_API_KEY"), "API key")
		extra   = flag.String("extra", os.Getenv("ROOMBOOK_API_EXTRA"), "API extra header value")
		dryRun  = flag.Bool("dry-run", false, "validate only")
	)
	flag.Parse()

	data, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("read resources: %w", err)
	}
	var file resourcesFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse resources: %w", err)
	}
	if len(file.Resources) == 0 {
		return errors.New("no resources in yaml")
	}
	if err = config.ValidateResources(file.Resources); err != nil {
		return err
	}
	if *dryRun {
		logger.Info().Int("count", len(file.Resources)).Msg("Resources valid")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c := client.New(*baseURL, *apiKey, *extra)
	created, updated := 0, 0
	for i := range file.Resources {
		res := &file.Resources[i]
		_, err := c.GetResource(ctx, res.ID)
		switch {
		case err == nil:
			updated++
		case client.IsStatus(err, http.StatusNotFound):
			created++
		default:
			return fmt.Errorf("get %s: %w", res.ID, err)
		}
		if _, err := c.SaveResource(ctx, res); err != nil {
			return fmt.Errorf("save %s: %w", res.ID, err)
		}
		logger.Info().Str("resource_id", res.ID).Msg("Resource saved")
	}

	logger.Info().Int("created", created).Int("updated", updated).Msg("Import done")
	return nil
}
