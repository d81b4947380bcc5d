package revenue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/wurlus/platform/internal/chain"
	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/repository"
)

const (
	holdersCacheTTL   = 5 * time.Minute
	holdersPageSize   = 1000
	holdersMaxPages   = 20
	holdersMaxTotal   = 1000
	holdersPageDelay  = 1500 * time.Millisecond
	holdersAPITimeout = 10 * time.Second
)

// HolderSource produces the SBETS holder distribution used to weigh revenue
// claims. Snapshots are cached; a claim within the TTL reuses the last one.
type HolderSource struct {
	apiURL   string
	apiKey   string
	coinType string
	excluded map[string]struct{}

	db      repository.DBTX
	users   repository.UserRepository
	gateway chain.Gateway
	client  *http.Client
	logger  *slog.Logger

	mu        sync.Mutex
	snapshot  []domain.TokenHolder
	supply    float64
	fetchedAt time.Time

	sleep func(ctx context.Context, d time.Duration)
}

func NewHolderSource(
	apiURL, apiKey, coinType string,
	platformWallets []string,
	db repository.DBTX,
	users repository.UserRepository,
	gateway chain.Gateway,
	logger *slog.Logger,
) *HolderSource {
	excluded := make(map[string]struct{}, len(platformWallets))
	for _, w := range platformWallets {
		if w != "" {
			excluded[domain.NormalizeWallet(w)] = struct{}{}
		}
	}
	return &HolderSource{
		apiURL:   apiURL,
		apiKey:   apiKey,
		coinType: coinType,
		excluded: excluded,
		db:       db,
		users:    users,
		gateway:  gateway,
		client:   &http.Client{Timeout: holdersAPITimeout},
		logger:   logger.With("component", "holder_source"),
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// Snapshot returns the holder list and circulating supply, refreshing when
// the cached copy is older than the TTL.
func (h *HolderSource) Snapshot(ctx context.Context) ([]domain.TokenHolder, float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snapshot != nil && time.Since(h.fetchedAt) < holdersCacheTTL {
		return h.snapshot, h.supply, nil
	}

	supply, err := h.gateway.TotalSupply(ctx)
	if err != nil {
		return nil, 0, domain.ErrUpstream("token supply unavailable", err)
	}

	holders, err := h.fetchFromIndexer(ctx, supply)
	if err != nil {
		h.logger.Warn("indexer holder fetch failed, scanning known wallets", "error", err)
		holders, err = h.scanKnownWallets(ctx, supply)
		if err != nil {
			return nil, 0, err
		}
	}

	h.snapshot = holders
	h.supply = supply
	h.fetchedAt = time.Now()
	h.logger.Info("holder snapshot refreshed", "holders", len(holders), "supply", supply)
	return holders, supply, nil
}

// Balance returns the wallet's SBETS balance from the current snapshot, zero
// when the wallet is not a holder.
func (h *HolderSource) Balance(ctx context.Context, wallet string) (float64, float64, error) {
	holders, supply, err := h.Snapshot(ctx)
	if err != nil {
		return 0, 0, err
	}
	wallet = domain.NormalizeWallet(wallet)
	for _, holder := range holders {
		if domain.NormalizeWallet(holder.Wallet) == wallet {
			return holder.Balance, supply, nil
		}
	}
	return 0, supply, nil
}

type indexerHolderPage struct {
	Result struct {
		Data []struct {
			Address string  `json:"address"`
			Balance float64 `json:"balance"`
		} `json:"data"`
		HasNextPage bool `json:"hasNextPage"`
	} `json:"result"`
}

func (h *HolderSource) fetchFromIndexer(ctx context.Context, supply float64) ([]domain.TokenHolder, error) {
	if h.apiURL == "" {
		return nil, fmt.Errorf("no holders API configured")
	}

	var holders []domain.TokenHolder
	for page := 0; page < holdersMaxPages; page++ {
		if page > 0 {
			h.sleep(ctx, holdersPageDelay)
		}

		q := url.Values{}
		q.Set("coinType", h.coinType)
		q.Set("limit", fmt.Sprintf("%d", holdersPageSize))
		q.Set("page", fmt.Sprintf("%d", page))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.apiURL+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		if h.apiKey != "" {
			req.Header.Set("x-api-key", h.apiKey)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("holders page %d: %w", page, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("holders page %d: status %d", page, resp.StatusCode)
		}

		var body indexerHolderPage
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("holders page %d: %w", page, err)
		}

		for _, row := range body.Result.Data {
			wallet := domain.NormalizeWallet(row.Address)
			if _, skip := h.excluded[wallet]; skip {
				continue
			}
			if row.Balance <= 0 {
				continue
			}
			holders = append(holders, domain.TokenHolder{
				Wallet:     row.Address,
				Balance:    row.Balance,
				Percentage: percentageOf(row.Balance, supply),
			})
		}
		// the snapshot is capped after exclusions, not per page
		if len(holders) >= holdersMaxTotal {
			holders = holders[:holdersMaxTotal]
			break
		}
		if !body.Result.HasNextPage {
			break
		}
	}
	return holders, nil
}

// scanKnownWallets is the fallback path: read the balance of every wallet
// that ever touched the platform. Slower and incomplete, but keeps claims
// working when the indexer is down.
func (h *HolderSource) scanKnownWallets(ctx context.Context, supply float64) ([]domain.TokenHolder, error) {
	wallets, err := h.users.ListWallets(ctx, h.db)
	if err != nil {
		return nil, err
	}

	var holders []domain.TokenHolder
	for _, wallet := range wallets {
		if _, skip := h.excluded[domain.NormalizeWallet(wallet)]; skip {
			continue
		}
		balance, err := h.gateway.WalletBalance(ctx, wallet, domain.CurrencySBETS)
		if err != nil {
			h.logger.Warn("balance read failed", "wallet", wallet, "error", err)
			continue
		}
		if balance <= 0 {
			continue
		}
		holders = append(holders, domain.TokenHolder{
			Wallet:     wallet,
			Balance:    balance,
			Percentage: percentageOf(balance, supply),
		})
		if len(holders) >= holdersMaxTotal {
			break
		}
	}
	return holders, nil
}

func percentageOf(balance, supply float64) float64 {
	if supply <= 0 {
		return 0
	}
	return balance / supply * 100
}
