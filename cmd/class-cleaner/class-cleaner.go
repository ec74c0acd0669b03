// class-cleaner is a small maintenance tool that truncates one entity class
// on a metadata origin, for operators who need to reset a collection without
// going through the service api.
package main

import (
	"context"
	"os"
	"strconv"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"

	"github.com/openmetalab/metasync/pkg/metadata/client"
)

const appName string = "class-cleaner"

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	cfg := LoadConfiguration(ctx)

	if cfg.endpoint == "" {
		log.Error("no metadata endpoint configured")
		os.Exit(1)
	}

	classID, err := strconv.ParseInt(cfg.classID, 10, 64)
	if err != nil {
		log.Error("class id must be an integer", "class_id", cfg.classID)
		os.Exit(1)
	}

	c := client.NewMetadataClient(cfg.endpoint, client.Token(cfg.token), client.Debug(cfg.debug))

	result, err := c.TruncateClass(ctx, classID)
	if err != nil {
		log.Error("failed to truncate class", "class_id", classID, "err", err.Error())
		os.Exit(1)
	}

	if !result.Success {
		log.Error("truncate rejected", "class_id", classID, "message", result.Message)
		os.Exit(1)
	}

	log.Info("class truncated", "class_id", classID, "message", result.Message)
}

type Config struct {
	endpoint string
	token    string
	classID  string
	debug    string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		endpoint: env.GetVariableOrDefault(ctx, "METADATA_ENDPOINT", ""),
		token:    env.GetVariableOrDefault(ctx, "METADATA_TOKEN", ""),
		classID:  env.GetVariableOrDefault(ctx, "CLASS_ID", ""),
		debug:    env.GetVariableOrDefault(ctx, "METADATA_CLIENT_DEBUG", "false"),
	}
}
