// Package probe checks which protocol extensions a Cashu mint
// advertises. Nutzaps need NUT-10 spending conditions and NUT-11 P2PK
// from the mint; NUT-12 DLEQ proofs additionally let the receiver
// verify proofs offline.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/openvine/nutzap/cashu/nuts/nut06"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultCacheTTL    = 5 * time.Minute
	DefaultConcurrency = 3
	DefaultBatchDelay  = 200 * time.Millisecond
)

type SecurityLevel int

const (
	// None: the mint cannot hold nutzap proofs at all
	None SecurityLevel = iota
	// Basic: P2PK locking works but proofs cannot be verified offline
	Basic
	// High: P2PK plus DLEQ proofs
	High
)

func (level SecurityLevel) String() string {
	switch level {
	case High:
		return "HIGH"
	case Basic:
		return "BASIC"
	default:
		return "NONE"
	}
}

// Result is the outcome of probing a single mint. A failed probe is
// still a Result, with Compatible false and Err populated.
type Result struct {
	MintURL string
	Info    *nut06.MintInfo

	SupportsSpendingConditions bool
	SupportsP2PK               bool
	SupportsDLEQ               bool

	Compatible bool
	Security   SecurityLevel

	ResponseTime time.Duration
	CheckedAt    time.Time
	Err          string
}

// Cache memoizes probe results per mint URL. Implementations must be
// safe for concurrent use: ProbeMany reads and writes from multiple
// goroutines.
type Cache interface {
	Get(mintURL string) (Result, bool)
	Set(mintURL string, result Result)
	Clear()
}

type ttlCache struct {
	cache *gocache.Cache
}

// NewTTLCache returns a Cache whose entries expire after ttl. Expiry
// is evaluated lazily on lookup, there is no background sweeper.
func NewTTLCache(ttl time.Duration) Cache {
	return &ttlCache{cache: gocache.New(ttl, 0)}
}

func (c *ttlCache) Get(mintURL string) (Result, bool) {
	value, found := c.cache.Get(mintURL)
	if !found {
		return Result{}, false
	}
	result, ok := value.(Result)
	return result, ok
}

func (c *ttlCache) Set(mintURL string, result Result) {
	c.cache.SetDefault(mintURL, result)
}

func (c *ttlCache) Clear() {
	c.cache.Flush()
}

type Prober struct {
	client      *http.Client
	cache       Cache
	log         *logrus.Logger
	timeout     time.Duration
	concurrency int
	batchDelay  time.Duration
}

type Option func(*Prober)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Prober) { p.client = client }
}

func WithCache(cache Cache) Option {
	return func(p *Prober) { p.cache = cache }
}

func WithLogger(log *logrus.Logger) Option {
	return func(p *Prober) { p.log = log }
}

func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) { p.timeout = timeout }
}

func WithConcurrency(concurrency int) Option {
	return func(p *Prober) {
		if concurrency > 0 {
			p.concurrency = concurrency
		}
	}
}

func WithBatchDelay(delay time.Duration) Option {
	return func(p *Prober) { p.batchDelay = delay }
}

func New(opts ...Option) *Prober {
	p := &Prober{
		client:      &http.Client{},
		cache:       NewTTLCache(DefaultCacheTTL),
		log:         logrus.StandardLogger(),
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		batchDelay:  DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe fetches the mint's /v1/info and classifies its nutzap
// capability. It never returns an error: network failures and
// timeouts produce a Result with Err set. Cached results are returned
// verbatim without a network call.
func (p *Prober) Probe(ctx context.Context, mintURL string) Result {
	if cached, found := p.cache.Get(mintURL); found {
		return cached
	}

	result := p.fetchCapabilities(ctx, mintURL)
	p.cache.Set(mintURL, result)
	return result
}

func (p *Prober) fetchCapabilities(ctx context.Context, mintURL string) Result {
	result := Result{
		MintURL:   mintURL,
		Security:  None,
		CheckedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mintURL+"/v1/info", nil)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		// covers timeouts: the context cancels the in-flight request
		result.Err = err.Error()
		p.log.WithFields(logrus.Fields{"mint": mintURL, "error": err}).Debug("mint probe failed")
		return result
	}
	defer resp.Body.Close()
	result.ResponseTime = time.Since(start)

	if resp.StatusCode != http.StatusOK {
		result.Err = fmt.Sprintf("mint info returned status %d", resp.StatusCode)
		return result
	}

	var mintInfo nut06.MintInfo
	if err := json.NewDecoder(resp.Body).Decode(&mintInfo); err != nil {
		result.Err = fmt.Sprintf("error reading response from mint: %v", err)
		return result
	}

	result.Info = &mintInfo
	result.SupportsSpendingConditions = mintInfo.Nuts.Nut10.Supported
	result.SupportsP2PK = mintInfo.Nuts.Nut11.Supported
	result.SupportsDLEQ = mintInfo.Nuts.Nut12.Supported
	result.Compatible = result.SupportsP2PK && result.SupportsSpendingConditions

	switch {
	case result.Compatible && result.SupportsDLEQ:
		result.Security = High
	case result.Compatible:
		result.Security = Basic
	}

	p.log.WithFields(logrus.Fields{
		"mint":     mintURL,
		"security": result.Security.String(),
		"rtt":      result.ResponseTime,
	}).Debug("mint probed")

	return result
}

// ProbeMany probes mints in fixed-size concurrent batches. The
// returned slice matches the input order regardless of completion
// order, and one probe failing never cancels its siblings. A small
// delay between batches keeps the probing polite.
func (p *Prober) ProbeMany(ctx context.Context, mintURLs []string) []Result {
	results := make([]Result, len(mintURLs))

	for batchStart := 0; batchStart < len(mintURLs); batchStart += p.concurrency {
		batchEnd := batchStart + p.concurrency
		if batchEnd > len(mintURLs) {
			batchEnd = len(mintURLs)
		}

		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			wg.Add(1)
			go func(i int, mintURL string) {
				defer wg.Done()
				results[i] = p.Probe(ctx, mintURL)
			}(i, mintURLs[i])
		}
		wg.Wait()

		if batchEnd < len(mintURLs) && p.batchDelay > 0 {
			select {
			case <-ctx.Done():
				for i := batchEnd; i < len(mintURLs); i++ {
					results[i] = Result{
						MintURL:   mintURLs[i],
						Security:  None,
						CheckedAt: time.Now(),
						Err:       ctx.Err().Error(),
					}
				}
				return results
			case <-time.After(p.batchDelay):
			}
		}
	}

	return results
}

// PickBest returns the compatible mint with the strongest security
// level, breaking ties by response time. It returns nil when no mint
// is compatible.
func PickBest(results []Result) *Result {
	compatible := make([]Result, 0, len(results))
	for _, result := range results {
		if result.Compatible {
			compatible = append(compatible, result)
		}
	}
	if len(compatible) == 0 {
		return nil
	}

	sort.SliceStable(compatible, func(i, j int) bool {
		if compatible[i].Security != compatible[j].Security {
			return compatible[i].Security > compatible[j].Security
		}
		return compatible[i].ResponseTime < compatible[j].ResponseTime
	})

	return &compatible[0]
}
