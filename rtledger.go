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
	"embed"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rtledger/rtledger/config"
	"github.com/rtledger/rtledger/database"
	"github.com/rtledger/rtledger/internal/cache"
	redis_db "github.com/rtledger/rtledger/internal/redis-db"
	"github.com/rtledger/rtledger/internal/salesapi"
	"github.com/rtledger/rtledger/model"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// SalesFeed is the read-only third party sales feed.
type SalesFeed interface {
	FetchSales(ctx context.Context, refresh bool) ([]salesapi.Sale, error)
	Invalidate(ctx context.Context) error
}

// RTLedger is the commission back office: imports, accrual, payouts, manual commission
// approvals and the audit trail, on top of a datasource.
type RTLedger struct {
	datasource database.IDataSource
	config     *config.Configuration
	features   model.FeatureSet
	sales      SalesFeed
	audit      AuditSink
	queue      *Queue
	state      *stateStore

	// payoutMu serializes payout commits in this process; locks does the same across
	// instances when redis is configured.
	payoutMu sync.Mutex
	locks    redis.UniversalClient
}

// NewRTLedger initializes a new instance of RTLedger with the provided database datasource.
// The schema feature set is resolved once here and reused by every operation. When redis
// is configured, audit entries go through the task queue and the sales feed is cached.
func NewRTLedger(db database.IDataSource) (*RTLedger, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	features, err := db.DetectFeatures(ctx)
	if err != nil {
		return nil, err
	}
	if !features.PayoutsEnabled() {
		logrus.Warn("accrual columns not found, payout features are disabled")
	}

	var writer actionLogWriter = db
	var feedCache cache.Cache
	var queue *Queue
	var locks redis.UniversalClient
	if configuration.Redis.Dns != "" {
		queue, err = NewQueue(configuration)
		if err != nil {
			return nil, err
		}
		writer = queue

		feedCache, err = cache.NewCache()
		if err != nil {
			logrus.WithError(err).Warn("sales feed cache unavailable")
			feedCache = nil
		}

		rdb, err := redis_db.NewRedisClient(configuration.Redis.Dns, configuration.Redis.SkipTLSVerify)
		if err != nil {
			logrus.WithError(err).Warn("redis unreachable, payout commits are only serialized within this process")
		} else {
			locks = rdb.Client()
		}
	}

	l := &RTLedger{
		datasource: db,
		config:     configuration,
		features:   features,
		sales:      salesapi.NewClient(configuration.SalesAPI, feedCache),
		audit:      newChannelAuditSink(writer, configuration.Audit.BufferSize),
		queue:      queue,
		locks:      locks,
	}
	l.state = newStateStore(l.loadState)
	return l, nil
}

// Features returns the schema capabilities detected at startup.
func (l *RTLedger) Features() model.FeatureSet {
	return l.features
}

// Close flushes pending audit entries and releases the queue client.
func (l *RTLedger) Close() error {
	if closer, ok := l.audit.(interface{ Close() }); ok {
		closer.Close()
	}
	if l.queue != nil {
		return l.queue.Close()
	}
	return nil
}
