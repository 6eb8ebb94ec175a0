package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

const queueAlreadyExists = "QueueAlreadyExists"

// Provision creates the given tables and queues. Names that are empty are
// skipped and resources that already exist are left alone.
func Provision(ctx context.Context, connStr string, tables, queues []string, logger *log.Logger) error {
	if err := createTables(ctx, connStr, tables, logger); err != nil {
		return err
	}
	return createQueues(ctx, connStr, queues, logger)
}

func createTables(ctx context.Context, connStr string, names []string, logger *log.Logger) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range nonEmpty(names) {
		_, err := svc.NewClient(name).CreateTable(ctx, nil)
		if alreadyExists(err, string(aztables.TableAlreadyExists)) {
			logger.WithField("table", name).Debug("table already exists")
			continue
		}
		if err != nil {
			return err
		}
		logger.WithField("table", name).Info("table created")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string, logger *log.Logger) error {
	for _, name := range nonEmpty(names) {
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		_, err = q.Create(ctx, nil)
		if alreadyExists(err, queueAlreadyExists) {
			logger.WithField("queue", name).Debug("queue already exists")
			continue
		}
		if err != nil {
			return err
		}
		logger.WithField("queue", name).Info("queue created")
	}
	return nil
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}

func nonEmpty(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
