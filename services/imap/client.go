package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/tracing"
)

const (
	dialTimeout  = 30 * time.Second
	loginTimeout = 30 * time.Second
	fetchWindow  = 100
)

// dialer opens authenticated IMAP sessions over the emersion client.
type dialer struct{}

func NewDialer() interfaces.IMAPDialer {
	return &dialer{}
}

func (d *dialer) Dial(ctx context.Context, creds interfaces.IMAPCredentials) (interfaces.IMAPConnection, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "dialer.Dial")
	defer span.Finish()
	span.SetTag("server", creds.Host)
	span.SetTag("port", creds.Port)
	span.SetTag("tls", creds.TLS)

	serverAddr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)

	netDialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error

	if creds.TLS {
		tlsConfig := &tls.Config{
			ServerName: creds.Host,
		}
		c, err = client.DialWithDialerTLS(netDialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(netDialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, classify("dial "+serverAddr, err)
	}

	c.Timeout = loginTimeout
	if err := c.Login(creds.Username, creds.Password); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return nil, classify("login "+creds.Username, err)
	}
	// No timeout for normal operations
	c.Timeout = 0

	return &connection{client: c}, nil
}

// connection adapts one logged-in emersion session to the narrow contract the
// sync path uses. Every raw error leaves this file already classified.
type connection struct {
	client *client.Client
}

func (c *connection) SelectFolder(ctx context.Context, folder string) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "connection.SelectFolder")
	defer span.Finish()
	span.SetTag("folder", folder)

	if _, err := c.client.Select(folder, true); err != nil {
		tracing.TraceErr(span, err)
		return classify("select "+folder, err)
	}
	return nil
}

func (c *connection) SearchSinceUID(ctx context.Context, lastUID uint32) ([]uint32, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "connection.SearchSinceUID")
	defer span.Finish()
	span.SetTag("last-uid", lastUID)

	criteria := goimap.NewSearchCriteria()
	criteria.WithoutFlags = []string{goimap.SeenFlag}

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, classify("uid search", err)
	}

	// The unseen set is UID-unordered and can include messages already
	// reconciled (providers that never clear the flag). The cursor filter,
	// not the flag, decides what is new.
	result := uids[:0]
	for _, uid := range uids {
		if uid > lastUID {
			result = append(result, uid)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	span.SetTag("found", len(result))
	return result, nil
}

func (c *connection) FetchByUID(ctx context.Context, uids []uint32) ([]*interfaces.FetchedMessage, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "connection.FetchByUID")
	defer span.Finish()
	span.SetTag("count", len(uids))

	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(goimap.SeqSet)
	for _, uid := range uids {
		seqSet.AddNum(uid)
	}

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{
		goimap.FetchUid,
		goimap.FetchFlags,
		goimap.FetchInternalDate,
		section.FetchItem(),
	}

	messages := make(chan *goimap.Message, fetchWindow)
	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- c.client.UidFetch(seqSet, items, messages)
	}()

	var fetched []*interfaces.FetchedMessage
	for msg := range messages {
		if msg == nil {
			continue
		}

		var raw []byte
		if body := msg.GetBody(section); body != nil {
			data, err := io.ReadAll(body)
			if err != nil {
				tracing.TraceErr(span, err)
				continue
			}
			raw = data
		}

		fetched = append(fetched, &interfaces.FetchedMessage{
			UID:          msg.Uid,
			Flags:        msg.Flags,
			InternalDate: msg.InternalDate,
			Raw:          raw,
		})
	}

	if err := <-fetchDone; err != nil {
		tracing.TraceErr(span, err)
		return nil, classify("uid fetch", err)
	}

	span.SetTag("fetched", len(fetched))
	return fetched, nil
}

func (c *connection) Noop() error {
	if err := c.client.Noop(); err != nil {
		return classify("noop", err)
	}
	return nil
}

func (c *connection) Close() error {
	c.client.Timeout = 5 * time.Second

	done := make(chan error, 1)
	go func() {
		done <- c.client.Logout()
	}()

	select {
	case err := <-done:
		if err != nil {
			return classify("logout", err)
		}
		return nil
	case <-time.After(5 * time.Second):
		// Server never acknowledged the logout; drop the connection.
		return nil
	}
}
