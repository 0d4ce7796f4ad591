// Command savebatch is the Lambda entry point for change-set batches backed
// by DynamoDB.
//
// Environment:
//
//	TABLE_PREFIX   prefix added to every collection's table name
//	KEY_FIELD      key field name shared by all types (default "_id")
//	SAVE_FILTER    expr-lang expression; entities it rejects are skipped
//	SOFT_DELETE    "true" marks removed items with a TTL instead of deleting
//	VERIFY_TABLES  "true" checks each table exists before writing to it
//	EVENT_SOURCE   "api" (default) for API Gateway, "sqs" for an SQS queue
//	LOG_LEVEL      debug, info, warn or error (default info)
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/changeset/handler"
	"github.com/jacentio/changeset/save"
	"github.com/jacentio/changeset/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoCfg := store.DefaultDynamoConfig()
	dynamoCfg.TablePrefix = os.Getenv("TABLE_PREFIX")
	dynamoCfg.SoftDelete = envBool("SOFT_DELETE")
	dynamoCfg.VerifyTables = envBool("VERIFY_TABLES")
	st := store.NewDynamo(dynamodb.NewFromConfig(awsCfg), dynamoCfg)

	saveCfg := save.DefaultConfig()
	saveCfg.Logger = logger
	if env := os.Getenv("KEY_FIELD"); env != "" {
		saveCfg.KeyField = env
	}
	opts := []save.Option{save.WithConfig(saveCfg)}
	if env := os.Getenv("SAVE_FILTER"); env != "" {
		filter, err := save.ExprFilter(env)
		if err != nil {
			logger.Error("invalid SAVE_FILTER", "error", err)
			os.Exit(1)
		}
		opts = append(opts, save.WithFilter(filter))
	}

	h := handler.New(st, logger, opts...)
	switch source := os.Getenv("EVENT_SOURCE"); source {
	case "", "api":
		lambda.Start(h.HandleRequest)
	case "sqs":
		lambda.Start(h.HandleQueue)
	default:
		logger.Error("unknown EVENT_SOURCE", "source", source)
		os.Exit(1)
	}
}

func envBool(name string) bool {
	v := os.Getenv(name)
	return v == "true" || v == "1"
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
