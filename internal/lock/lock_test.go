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

package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestLockerLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "payout-commit", "token-a")

	mock.ExpectSetNX("payout-commit", "token-a", 30*time.Second).SetVal(true)

	assert.NoError(t, locker.Lock(context.Background(), 30*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockerLockHeld(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "payout-commit", "token-a")

	mock.ExpectSetNX("payout-commit", "token-a", 30*time.Second).SetVal(false)

	err := locker.Lock(context.Background(), 30*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockerLockRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "payout-commit", "token-a")

	mock.ExpectSetNX("payout-commit", "token-a", 30*time.Second).SetErr(errors.New("connection refused"))

	err := locker.Lock(context.Background(), 30*time.Second)
	assert.EqualError(t, err, "connection refused")
	assert.False(t, errors.Is(err, ErrLockHeld))
}

func TestLockerUnlock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "payout-commit", "token-a")

	mock.ExpectEval(unlockScript, []string{"payout-commit"}, "token-a").SetVal(int64(1))

	assert.NoError(t, locker.Unlock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockerUnlockNotHolder(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "payout-commit", "token-b")

	mock.ExpectEval(unlockScript, []string{"payout-commit"}, "token-b").SetVal(int64(0))

	err := locker.Unlock(context.Background())
	assert.EqualError(t, err, "lock payout-commit expired or is held by someone else")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockerWaitLockAcquiresAfterRetry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "payout-commit", "token-a")

	mock.ExpectSetNX("payout-commit", "token-a", 30*time.Second).SetVal(false)
	mock.ExpectSetNX("payout-commit", "token-a", 30*time.Second).SetVal(true)

	assert.NoError(t, locker.WaitLock(context.Background(), 30*time.Second, 2*time.Second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockerWaitLockTimeout(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "payout-commit", "token-a")
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 20; i++ {
		mock.ExpectSetNX("payout-commit", "token-a", 30*time.Second).SetVal(false)
	}

	err := locker.WaitLock(context.Background(), 30*time.Second, 200*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockHeld)
}
