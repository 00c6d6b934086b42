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

package database

import (
	"database/sql"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/rtledger/rtledger/config"
	"github.com/rtledger/rtledger/internal/tokenization"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

// Datasource is the Postgres implementation of IDataSource. Tables live in the rtledger
// schema and are created by the migrations, not at connect time.
type Datasource struct {
	Conn      *sql.DB
	tokenizer *tokenization.TokenizationService
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		var tokenizer *tokenization.TokenizationService
		if key := configuration.Tokenization.SecretKey; key != "" {
			tokenizer, errConn = tokenization.NewTokenizationService([]byte(key))
			if errConn != nil {
				_ = con.Close()
				err = errConn
				return
			}
		}
		instance = &Datasource{Conn: con, tokenizer: tokenizer}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB opens the pool and pings it, retrying with exponential backoff while the
// database comes up.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ping := func() error {
		err := db.Ping()
		if err != nil {
			logrus.WithError(err).Warn("database not reachable yet")
		}
		return err
	}
	err = backoff.Retry(ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		logrus.WithError(err).Error("database connection error")
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
