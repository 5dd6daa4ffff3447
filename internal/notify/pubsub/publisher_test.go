package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/notify"
	notifypubsub "github.com/JakeFAU/filament-catalog/internal/notify/pubsub"
)

func TestPublisherPublishesRecord(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "materials")
	require.NoError(t, err)

	pub := notifypubsub.New(nil, topic)
	rec := catalog.MaterialRecord{
		ID:           9,
		Key:          "https://example.com/swatch/9",
		Name:         "Galaxy Black",
		Manufacturer: "Prusament",
		Color:        catalog.MustParseHex("#1A1A1A"),
	}
	require.NoError(t, pub.Publish(ctx, rec))
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.EventRecordUpdated, msgs[0].Attributes["type"])
	assert.Equal(t, rec.Key, msgs[0].Attributes["key"])

	var body notify.Message
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, int64(9), body.ID)
	assert.Equal(t, "Galaxy Black", body.Record.Name)
	assert.Equal(t, "#1A1A1A", body.Record.ColorHex())
}

func TestPublisherRequiresTopic(t *testing.T) {
	pub := notifypubsub.New(nil, nil)
	err := pub.Publish(context.Background(), catalog.MaterialRecord{Key: "a"})
	assert.Error(t, err)
	assert.NoError(t, pub.Close())
}
