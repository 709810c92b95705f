// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/zintix-labs/reelround/winline"
)

// 金額欄位使用 decimal.Decimal：上行可接受 JSON 數字或數字字串，下行一律輸出字串。

type RoundStartRequest struct {
	TableID string `json:"tableId"`
}

type RoundStartResponse struct {
	Status  string          `json:"status"`
	RoundID string          `json:"roundId"`
	Balance decimal.Decimal `json:"balance"`
}

type PlaceBetRequest struct {
	RoundID string          `json:"roundId"`
	TableID string          `json:"tableId"`
	Stake   decimal.Decimal `json:"stakeAmount"`
}

type PlaceBetResponse struct {
	Status   string          `json:"status"`
	Balance  decimal.Decimal `json:"balance"`
	WinCombo string          `json:"winCombo"`
	Matrix   [][]string      `json:"matrix"`
}

type RoundEndRequest struct {
	TableID      string `json:"tableId"`
	RoundID      string `json:"roundId"`
	ResultString string `json:"resultString"`
}

type RoundEndResponse struct {
	Status   string          `json:"status"`
	Balance  decimal.Decimal `json:"balance"`
	Reward   decimal.Decimal `json:"reward"`
	Paylines []winline.Line  `json:"paylines"`
}

// 以下為上行回應的邊界驗證，必要欄位用指標判斷是否存在。

type roundStartWire struct {
	Status  *string          `json:"status"`
	RoundID *json.RawMessage `json:"roundId"`
	Balance *decimal.Decimal `json:"balance"`
}

type placeBetWire struct {
	Status   *string          `json:"status"`
	Balance  *decimal.Decimal `json:"balance"`
	WinCombo *string          `json:"winCombo"`
	Matrix   *[][]string      `json:"matrix"`
}

type roundEndWire struct {
	Status   *string          `json:"status"`
	Balance  *decimal.Decimal `json:"balance"`
	Reward   *decimal.Decimal `json:"reward"`
	Paylines *[]winline.Line  `json:"paylines"`
}

func DecodeRoundStartResponse(raw json.RawMessage) (RoundStartResponse, error) {
	var w roundStartWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return RoundStartResponse{}, schemaErr(KeyRoundStart, "*", err.Error())
	}
	switch {
	case w.Status == nil:
		return RoundStartResponse{}, schemaErr(KeyRoundStart, "status", "required")
	case w.RoundID == nil:
		return RoundStartResponse{}, schemaErr(KeyRoundStart, "roundId", "required")
	case w.Balance == nil:
		return RoundStartResponse{}, schemaErr(KeyRoundStart, "balance", "required")
	}
	id, err := flexString(*w.RoundID)
	if err != nil || id == "" {
		return RoundStartResponse{}, schemaErr(KeyRoundStart, "roundId", "must be a non-empty string or number")
	}
	return RoundStartResponse{Status: *w.Status, RoundID: id, Balance: *w.Balance}, nil
}

func DecodePlaceBetResponse(raw json.RawMessage) (PlaceBetResponse, error) {
	var w placeBetWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return PlaceBetResponse{}, schemaErr(KeyPlaceBet, "*", err.Error())
	}
	switch {
	case w.Status == nil:
		return PlaceBetResponse{}, schemaErr(KeyPlaceBet, "status", "required")
	case w.Balance == nil:
		return PlaceBetResponse{}, schemaErr(KeyPlaceBet, "balance", "required")
	case w.Matrix == nil || len(*w.Matrix) == 0:
		return PlaceBetResponse{}, schemaErr(KeyPlaceBet, "matrix", "required")
	}
	cols := len((*w.Matrix)[0])
	for _, row := range *w.Matrix {
		if len(row) == 0 || len(row) != cols {
			return PlaceBetResponse{}, schemaErr(KeyPlaceBet, "matrix", "rows must be non-empty and equal length")
		}
	}
	resp := PlaceBetResponse{Status: *w.Status, Balance: *w.Balance, Matrix: *w.Matrix}
	if w.WinCombo != nil {
		resp.WinCombo = *w.WinCombo
	}
	return resp, nil
}

func DecodeRoundEndResponse(raw json.RawMessage) (RoundEndResponse, error) {
	var w roundEndWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return RoundEndResponse{}, schemaErr(KeyRoundEnd, "*", err.Error())
	}
	switch {
	case w.Status == nil:
		return RoundEndResponse{}, schemaErr(KeyRoundEnd, "status", "required")
	case w.Balance == nil:
		return RoundEndResponse{}, schemaErr(KeyRoundEnd, "balance", "required")
	}
	resp := RoundEndResponse{Status: *w.Status, Balance: *w.Balance}
	if w.Reward != nil {
		resp.Reward = *w.Reward
	}
	if w.Paylines != nil {
		resp.Paylines = *w.Paylines
	}
	return resp, nil
}

func flexString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
