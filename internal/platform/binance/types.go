package binance

// exchangeInfo is the subset of GET /api/v3/exchangeInfo the adapter reads.
type exchangeInfo struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol              string `json:"symbol"`
	Status              string `json:"status"`
	BaseAsset           string `json:"baseAsset"`
	QuoteAsset          string `json:"quoteAsset"`
	BaseAssetPrecision  int32  `json:"baseAssetPrecision"`
	QuoteAssetPrecision int32  `json:"quoteAssetPrecision"`
}

// depthResponse is the body of GET /api/v3/depth and of a partial book
// depth stream event.
type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// streamEnvelope wraps events on the combined stream endpoint.
type streamEnvelope struct {
	Stream string        `json:"stream"`
	Data   depthResponse `json:"data"`
}

// apiError is the error body Binance returns with non-2xx statuses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
