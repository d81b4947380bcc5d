package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/wurlus/platform/internal/domain"
	"github.com/wurlus/platform/internal/infra"
)

const suiCoinType = "0x2::sui::SUI"

// SuiGateway implements Gateway against a Sui JSON-RPC fullnode. Transaction
// construction and signing live in a separate signer service holding the
// admin key; this gateway only requests transfers from it and reads state
// from the fullnode.
type SuiGateway struct {
	rpcURL         string
	signerURL      string
	adminWallet    string
	treasuryObject string
	sbetsCoinType  string
	client         *http.Client
	logger         *slog.Logger
}

// NewSuiGateway wires a gateway from configuration.
func NewSuiGateway(cfg *infra.Config, logger *slog.Logger) *SuiGateway {
	return &SuiGateway{
		rpcURL:         cfg.SuiRPCURL,
		signerURL:      cfg.SuiSignerURL,
		adminWallet:    cfg.AdminWallet,
		treasuryObject: cfg.TreasuryObject,
		sbetsCoinType:  cfg.SbetsCoinType,
		client:         &http.Client{Timeout: 15 * time.Second},
		logger:         logger.With("component", "sui_gateway"),
	}
}

func (g *SuiGateway) coinType(currency domain.Currency) string {
	if currency == domain.CurrencySBETS {
		return g.sbetsCoinType
	}
	return suiCoinType
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (g *SuiGateway) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.rpcURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sui rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("sui rpc %s: decode: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("sui rpc %s: %s (code %d)", method, envelope.Error.Message, envelope.Error.Code)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("sui rpc %s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

type signerTransferRequest struct {
	To       string `json:"to"`
	Amount   uint64 `json:"amount"`
	CoinType string `json:"coinType"`
}

type signerWithdrawRequest struct {
	TreasuryObject string `json:"treasuryObject"`
	Amount         uint64 `json:"amount"`
	CoinType       string `json:"coinType"`
}

type signerResponse struct {
	Digest string `json:"digest"`
	Error  string `json:"error,omitempty"`
}

func (g *SuiGateway) signerCall(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.signerURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("signer %s: %w", path, err)
	}
	defer resp.Body.Close()

	var result signerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("signer %s: decode: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK || result.Error != "" {
		return "", fmt.Errorf("signer %s: status %d: %s", path, resp.StatusCode, result.Error)
	}
	if result.Digest == "" {
		return "", fmt.Errorf("signer %s: empty digest", path)
	}
	return result.Digest, nil
}

func (g *SuiGateway) Send(ctx context.Context, to string, amount float64, currency domain.Currency) (string, error) {
	mist := ToMIST(amount)
	if mist == 0 {
		return "", fmt.Errorf("send: amount %f rounds to zero base units", amount)
	}
	digest, err := g.signerCall(ctx, "/transfer", signerTransferRequest{
		To:       to,
		Amount:   mist,
		CoinType: g.coinType(currency),
	})
	if err != nil {
		return "", err
	}
	g.logger.Info("transfer submitted",
		"to", to, "amount", amount, "currency", currency, "digest", digest)
	return digest, nil
}

func (g *SuiGateway) WithdrawFromTreasury(ctx context.Context, amount float64, currency domain.Currency) (string, error) {
	mist := ToMIST(amount)
	if mist == 0 {
		return "", fmt.Errorf("withdraw: amount %f rounds to zero base units", amount)
	}
	digest, err := g.signerCall(ctx, "/treasury/withdraw", signerWithdrawRequest{
		TreasuryObject: g.treasuryObject,
		Amount:         mist,
		CoinType:       g.coinType(currency),
	})
	if err != nil {
		return "", err
	}
	g.logger.Info("treasury withdrawal submitted",
		"amount", amount, "currency", currency, "digest", digest)
	return digest, nil
}

type txBlockResult struct {
	Digest      string `json:"digest"`
	TimestampMs string `json:"timestampMs"`
	Transaction struct {
		Data struct {
			Sender string `json:"sender"`
		} `json:"data"`
	} `json:"transaction"`
	Effects struct {
		Status struct {
			Status string `json:"status"`
		} `json:"status"`
	} `json:"effects"`
}

func (g *SuiGateway) VerifyTransaction(ctx context.Context, digest string) (*TxInfo, error) {
	var result txBlockResult
	err := g.call(ctx, "sui_getTransactionBlock", []any{
		digest,
		map[string]bool{"showEffects": true, "showInput": true},
	}, &result)
	if err != nil {
		return nil, err
	}
	if result.Digest == "" {
		return nil, nil
	}
	info := &TxInfo{
		Digest:  result.Digest,
		Success: result.Effects.Status.Status == "success",
		Sender:  result.Transaction.Data.Sender,
	}
	if ms, err := strconv.ParseInt(result.TimestampMs, 10, 64); err == nil {
		info.Timestamp = time.UnixMilli(ms).UTC()
	}
	return info, nil
}

type balanceResult struct {
	TotalBalance string `json:"totalBalance"`
}

func (g *SuiGateway) WalletBalance(ctx context.Context, wallet string, currency domain.Currency) (float64, error) {
	var result balanceResult
	err := g.call(ctx, "suix_getBalance", []any{wallet, g.coinType(currency)}, &result)
	if err != nil {
		return 0, err
	}
	mist, err := strconv.ParseUint(result.TotalBalance, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", result.TotalBalance, err)
	}
	return FromMIST(mist), nil
}

type objectResult struct {
	Data struct {
		Content struct {
			Fields struct {
				TreasurySui    string `json:"treasury_sui"`
				TreasurySbets  string `json:"treasury_sbets"`
				LiabilitySui   string `json:"liability_sui"`
				LiabilitySbets string `json:"liability_sbets"`
				Paused         bool   `json:"paused"`
			} `json:"fields"`
		} `json:"content"`
	} `json:"data"`
}

func parseMISTField(raw string) float64 {
	mist, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return FromMIST(mist)
}

func (g *SuiGateway) State(ctx context.Context) (*ContractState, error) {
	var result objectResult
	err := g.call(ctx, "sui_getObject", []any{
		g.treasuryObject,
		map[string]bool{"showContent": true},
	}, &result)
	if err != nil {
		return nil, err
	}
	fields := result.Data.Content.Fields
	return &ContractState{
		TreasurySUI:    parseMISTField(fields.TreasurySui),
		TreasurySBETS:  parseMISTField(fields.TreasurySbets),
		LiabilitySUI:   parseMISTField(fields.LiabilitySui),
		LiabilitySBETS: parseMISTField(fields.LiabilitySbets),
		Paused:         fields.Paused,
	}, nil
}

type supplyResult struct {
	Value string `json:"value"`
}

func (g *SuiGateway) TotalSupply(ctx context.Context) (float64, error) {
	var result supplyResult
	err := g.call(ctx, "suix_getTotalSupply", []any{g.sbetsCoinType}, &result)
	if err != nil {
		return 0, err
	}
	mist, err := strconv.ParseUint(result.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse supply %q: %w", result.Value, err)
	}
	return FromMIST(mist), nil
}
