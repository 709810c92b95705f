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

import "context"

// RoundStart round_events/round_start：取得回合編號與最新餘額。
func (c *Client) RoundStart(ctx context.Context, tableID string) (RoundStartResponse, error) {
	raw, err := c.Send(ctx, KeyRoundStart, RoundStartRequest{TableID: tableID})
	if err != nil {
		return RoundStartResponse{}, err
	}
	return DecodeRoundStartResponse(raw)
}

// PlaceBet placebet：押注並取得盤面與中獎編碼。
func (c *Client) PlaceBet(ctx context.Context, req PlaceBetRequest) (PlaceBetResponse, error) {
	raw, err := c.Send(ctx, KeyPlaceBet, req)
	if err != nil {
		return PlaceBetResponse{}, err
	}
	return DecodePlaceBetResponse(raw)
}

// RoundEnd round_events/round_end：結算派彩並取得線表。
func (c *Client) RoundEnd(ctx context.Context, req RoundEndRequest) (RoundEndResponse, error) {
	raw, err := c.Send(ctx, KeyRoundEnd, req)
	if err != nil {
		return RoundEndResponse{}, err
	}
	return DecodeRoundEndResponse(raw)
}
