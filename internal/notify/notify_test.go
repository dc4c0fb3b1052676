package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedKeepsNewest(t *testing.T) {
	f := NewFeed(3)
	ctx := context.Background()

	assert.Empty(t, f.List())
	for i := 1; i <= 5; i++ {
		require.NoError(t, f.Notify(ctx, Event{Type: ObjectSaved, Message: fmt.Sprintf("m%d", i)}))
	}

	got := f.List()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m3", "m4", "m5"}, []string{got[0].Message, got[1].Message, got[2].Message})
	for _, ev := range got {
		_, err := ulid.Parse(ev.ID)
		assert.NoError(t, err)
		assert.Equal(t, StatusInfo, ev.Status)
		assert.False(t, ev.Timestamp.IsZero())
	}
	assert.Less(t, got[0].ID, got[2].ID, "ids grow monotonically")
}

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestNatsPublisher(t *testing.T) {
	conn := &fakeConn{}
	p := newNatsPublisher(conn, "designer.events.")

	require.NoError(t, p.Notify(context.Background(), Event{Type: ObjectDeleted, Status: StatusSuccess, Object: "cars", DataSource: "files"}))
	require.Equal(t, []string{"designer.events.object.deleted"}, conn.subjects)

	var ev Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &ev))
	assert.Equal(t, "cars", ev.Object)
	assert.Equal(t, StatusSuccess, ev.Status)
	assert.NotEmpty(t, ev.ID)
	require.NoError(t, p.Close())
}

func TestMultiFansOutAndKeepsGoing(t *testing.T) {
	broken := newNatsPublisher(&fakeConn{err: errors.New("nats down")}, "")
	feed := NewFeed(10)

	err := Multi{broken, nil, feed}.Notify(context.Background(), Event{Type: DataSourceSaved})
	require.EqualError(t, err, "nats down")

	got := feed.List()
	require.Len(t, got, 1)
	assert.Equal(t, DataSourceSaved, got[0].Type)
	assert.NoError(t, Nop{}.Notify(context.Background(), Event{}))
}
