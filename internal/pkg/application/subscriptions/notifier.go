package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/openmetalab/metasync/pkg/metadata/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// Notifier pushes snapshot refresh events to an interested endpoint, so that
// consumers can update their cache status banners without polling. Delivery
// is best effort; a failed post is logged and dropped.
type Notifier interface {
	Start() error
	Stop() error

	SnapshotRefreshed(ctx context.Context, s *types.Snapshot, fromCache bool)
}

var tracer = otel.Tracer("metasync/notifier")

type action func()

type notifier struct {
	started  bool
	endpoint string

	queue chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	return &notifier{
		endpoint: endpoint,
		queue:    make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

func (n *notifier) Stop() error {
	if n.started {
		// create a result channel so that we can wait for completion
		resultChan := make(chan bool)

		n.queue <- func() {
			// close the queue to signal the consumers that we are going out of business
			close(n.queue)
			resultChan <- true
		}

		// blocking read until our action has been processed
		<-resultChan
	}
	return nil
}

func (n *notifier) SnapshotRefreshed(ctx context.Context, s *types.Snapshot, fromCache bool) {
	if n.started {
		var err error

		logger := logging.GetFromContext(ctx)

		ctx, span := tracer.Start(
			tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
			"post",
		)

		event := refreshEvent{
			OriginKey:      s.OriginKey,
			Timestamp:      s.Timestamp,
			FromCache:      fromCache,
			AttributeCount: len(s.Attributes),
			SetCount:       len(s.Sets),
			LinkTypeCount:  len(s.LinkTypes),
		}

		n.queue <- func() {
			defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

			err = postNotification(ctx, event, n.endpoint)
			if err != nil {
				logger.Error("failed to post notification", "err", err.Error())
			}
		}
	}
}

type refreshEvent struct {
	OriginKey      string    `json:"originKey"`
	Timestamp      time.Time `json:"timestamp"`
	FromCache      bool      `json:"fromCache"`
	AttributeCount int       `json:"attributeCount"`
	SetCount       int       `json:"setCount"`
	LinkTypeCount  int       `json:"linkTypeCount"`
}

func postNotification(ctx context.Context, event refreshEvent, endpoint string) error {
	body, err := json.MarshalIndent(event, "", " ")
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}

	defer resp.Body.Close()

	return nil
}

func (n *notifier) run() {
	// repeat until the queue is closed
	for action := range n.queue {
		if action == nil {
			return
		}

		action()
	}
}
