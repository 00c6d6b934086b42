/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package rtledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/rtledger/rtledger/config"
	redis_db "github.com/rtledger/rtledger/internal/redis-db"
	"github.com/rtledger/rtledger/model"
)

// TaskRecordActionLog is the task type of queued audit entries.
const TaskRecordActionLog = "audit:record"

// Queue hands audit entries to the workers through redis.
type Queue struct {
	Client    *asynq.Client
	queueName string
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		queueName: conf.Audit.Queue,
	}, nil
}

func newActionLogTask(entry model.ActionLog, queueName string) (*asynq.Task, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecordActionLog, payload, asynq.Queue(queueName), asynq.MaxRetry(3)), nil
}

// RecordActionLog enqueues entry for a worker to persist.
func (q *Queue) RecordActionLog(ctx context.Context, entry model.ActionLog) error {
	task, err := newActionLogTask(entry, q.queueName)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	logrus.WithField("task_id", info.ID).Debug("audit entry enqueued")
	return nil
}

func (q *Queue) Close() error {
	return q.Client.Close()
}

// ProcessActionLogTask persists a queued audit entry. Malformed payloads are not retried.
func (l *RTLedger) ProcessActionLogTask(ctx context.Context, t *asynq.Task) error {
	var entry model.ActionLog
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		logrus.WithError(err).Error("invalid audit task payload")
		return fmt.Errorf("invalid audit payload: %v: %w", err, asynq.SkipRetry)
	}
	return l.datasource.RecordActionLog(ctx, entry)
}
