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

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rtledger/rtledger/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackPayload(t *testing.T) {
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	msg := slackPayload("RT Ledger", errors.New("ledger insert failed"), at)

	require.Len(t, msg.Blocks, 3)
	assert.Equal(t, "header", msg.Blocks[0].Type)
	assert.Contains(t, msg.Blocks[0].Text.Text, "RT Ledger")
	assert.Contains(t, msg.Blocks[1].Fields[0].Text, "ledger insert failed")
}

func TestSlackNotification(t *testing.T) {
	received := make(chan slackMessage, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var msg slackMessage
		_ = json.Unmarshal(body, &msg)
		received <- msg
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	err := SlackNotification(context.Background(), server.URL, "RT Ledger", errors.New("payout_1 pending reconciliation"))
	require.NoError(t, err)

	msg := <-received
	assert.Contains(t, msg.Blocks[1].Fields[0].Text, "payout_1 pending reconciliation")
}

func TestNotifyErrorPostsToSlack(t *testing.T) {
	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: server.URL}},
	})

	NotifyError(errors.New("boom"))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a slack call")
	}
}
