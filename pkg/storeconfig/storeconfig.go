// Package storeconfig reads the merchandising document published next to the
// catalog. Only the shipping constants and the preview coupon are consumed.
package storeconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// VersionWindow is the cache-busting window appended to the document URL.
const VersionWindow = 30 * time.Minute

var ErrInvalidDocument = errors.New("invalid store config")

type Shipping struct {
	FreeShippingMinTotal float64 `json:"freeShippingMinTotal" validate:"gte=0"`
	FixedShippingFee     float64 `json:"fixedShippingFee" validate:"gte=0"`
}

type Coupon struct {
	Code    string  `json:"code" validate:"required_with=Percent"`
	Percent float64 `json:"percent" validate:"gte=0,lte=100"`
}

// Document is the subset of the merchandising config this module reads.
// Unknown keys are ignored.
type Document struct {
	Version   int       `json:"version"`
	UpdatedAt string    `json:"updatedAt"`
	Shipping  *Shipping `json:"shipping" validate:"omitempty"`
	Coupon    *Coupon   `json:"coupon" validate:"omitempty"`
}

// ShippingRules falls back to the storefront defaults when the document
// carries no shipping section.
func (d Document) ShippingRules() pricing.ShippingRules {
	if d.Shipping == nil {
		return pricing.DefaultShippingRules()
	}
	return pricing.ShippingRules{
		FreeShippingMinTotal: decimal.NewFromFloat(d.Shipping.FreeShippingMinTotal),
		FixedFee:             decimal.NewFromFloat(d.Shipping.FixedShippingFee),
	}
}

func (d Document) CouponRule() pricing.CouponRule {
	if d.Coupon == nil {
		return pricing.CouponRule{}
	}
	return pricing.CouponRule{
		Code:    pricing.NormalizeCode(d.Coupon.Code),
		Percent: decimal.NewFromFloat(d.Coupon.Percent),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and validates a document.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := validate.Struct(doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// Loader fetches the document once per version window and shares in-flight
// fetches between callers.
type Loader struct {
	url    string
	client *http.Client
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	cached  *Document
	version int64
}

type Option func(*Loader)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

func NewLoader(rawURL string, opts ...Option) *Loader {
	l := &Loader{
		url:    rawURL,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loader) Load(ctx context.Context) (Document, error) {
	version := l.now().UnixMilli() / VersionWindow.Milliseconds()

	l.mu.RLock()
	if l.cached != nil && l.version == version {
		doc := *l.cached
		l.mu.RUnlock()
		return doc, nil
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do(strconv.FormatInt(version, 10), func() (any, error) {
		doc, err := l.fetch(ctx, version)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cached = &doc
		l.version = version
		l.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return Document{}, err
	}
	return v.(Document), nil
}

func (l *Loader) fetch(ctx context.Context, version int64) (Document, error) {
	u, err := url.Parse(l.url)
	if err != nil {
		return Document{}, fmt.Errorf("parse config url: %w", err)
	}
	q := u.Query()
	q.Set("v", strconv.FormatInt(version, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := l.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch store config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("fetch store config: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Document{}, fmt.Errorf("read store config: %w", err)
	}
	return Parse(body)
}
