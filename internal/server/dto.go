package server

import (
	"whsper/internal/domain"
)

// Response payloads

type ClaimResponse struct {
	ID               uint64 `json:"id" example:"7"`
	Creator          string `json:"creator"`
	Recipient        string `json:"recipient"`
	Amount           string `json:"amount" example:"1000000" doc:"Signed 128-bit integer in base 10"`
	Token            string `json:"token"`
	Status           string `json:"status" enum:"pending,claimed,cancelled"`
	CreatedAt        uint64 `json:"created_at"`
	ClaimWindowStart uint64 `json:"claim_window_start"`
	ClaimWindowEnd   uint64 `json:"claim_window_end"`
}

type GetClaimResponse struct {
	Result string         `json:"result" enum:"found,not_found"`
	Claim  *ClaimResponse `json:"claim,omitempty"`
}

type ClaimListResponse struct {
	Items           []ClaimResponse `json:"items"`
	Limit           uint32          `json:"limit" doc:"Effective page size after clamping to 1..100"`
	IncludeTerminal bool            `json:"include_terminal"`
}

type ClaimWindowConfigResponse struct {
	WindowDurationSecs uint64 `json:"window_duration_secs"`
	MinClaimDelaySecs  uint64 `json:"min_claim_delay_secs"`
}

func claimResponse(c domain.Claim) ClaimResponse {
	return ClaimResponse{
		ID:               c.ID,
		Creator:          string(c.Creator),
		Recipient:        string(c.Recipient),
		Amount:           c.Amount.String(),
		Token:            string(c.Token),
		Status:           c.Status.String(),
		CreatedAt:        c.CreatedAt,
		ClaimWindowStart: c.ClaimWindowStart,
		ClaimWindowEnd:   c.ClaimWindowEnd,
	}
}

func getClaimResponse(res domain.GetClaimResult) GetClaimResponse {
	c, ok := res.Claim()
	if !ok {
		return GetClaimResponse{Result: res.String()}
	}
	cr := claimResponse(c)
	return GetClaimResponse{Result: res.String(), Claim: &cr}
}

func mapClaims(items []domain.Claim) []ClaimResponse {
	res := make([]ClaimResponse, 0, len(items))
	for _, c := range items {
		res = append(res, claimResponse(c))
	}
	return res
}

func windowConfigResponse(cfg domain.ClaimWindowConfig) ClaimWindowConfigResponse {
	return ClaimWindowConfigResponse{
		WindowDurationSecs: cfg.WindowDurationSecs,
		MinClaimDelaySecs:  cfg.MinClaimDelaySecs,
	}
}
