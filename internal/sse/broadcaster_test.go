package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rpggio/packetd/internal/notify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
	server      *httptest.Server
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster(zerolog.Nop())
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.broadcaster.Serve(w, r, 42)
	}))
}

func (s *BroadcasterSuite) TearDownTest() {
	s.server.CloseClientConnections()
	s.server.Close()
}

func (s *BroadcasterSuite) connect(ctx context.Context) *bufio.Reader {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.server.URL, nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { resp.Body.Close() })
	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body)
}

func readData(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: ")), nil
		}
	}
}

func (s *BroadcasterSuite) TestDeliverWithoutSubscribers() {
	err := s.broadcaster.Deliver(context.Background(), notify.Delivery{UserID: 42, Text: "x"})
	s.ErrorIs(err, notify.ErrNoSubscribers)
}

func (s *BroadcasterSuite) TestDeliverToConnectedClient() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := s.connect(ctx)
	hello, err := readData(reader)
	s.Require().NoError(err)
	s.Contains(hello, `"type":"connected"`)
	s.Equal(1, s.broadcaster.ClientCount(42))

	err = s.broadcaster.Deliver(ctx, notify.Delivery{UserID: 42, PacketID: 3, Kind: notify.KindSummary, Text: "done", Part: 1, Parts: 1})
	s.Require().NoError(err)

	data, err := readData(reader)
	s.Require().NoError(err)
	var got notify.Delivery
	s.Require().NoError(json.Unmarshal([]byte(data), &got))
	s.Equal(int64(3), got.PacketID)
	s.Equal("done", got.Text)
	s.Equal(notify.KindSummary, got.Kind)
}

func (s *BroadcasterSuite) TestOtherUsersDoNotReceive() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := s.connect(ctx)
	_, err := readData(reader)
	s.Require().NoError(err)

	err = s.broadcaster.Deliver(ctx, notify.Delivery{UserID: 7, Text: "x"})
	s.ErrorIs(err, notify.ErrNoSubscribers)
}

func (s *BroadcasterSuite) TestDisconnectRemovesClient() {
	ctx, cancel := context.WithCancel(context.Background())

	reader := s.connect(ctx)
	_, err := readData(reader)
	s.Require().NoError(err)
	s.Equal(1, s.broadcaster.ClientCount(42))

	cancel()
	s.Eventually(func() bool {
		return s.broadcaster.ClientCount(42) == 0
	}, time.Second, 10*time.Millisecond)
}

func (s *BroadcasterSuite) TestRemoveClientClosesQueue() {
	client := s.broadcaster.AddClient(9)
	s.Equal(1, s.broadcaster.ClientCount(9))

	s.broadcaster.RemoveClient(client)
	s.Equal(0, s.broadcaster.ClientCount(9))
	s.broadcaster.RemoveClient(client)

	select {
	case <-client.done:
	default:
		s.Fail("client done channel not closed")
	}
}
