package buda

type marketsResponse struct {
	Markets []market `json:"markets"`
}

type market struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
}

type orderBookResponse struct {
	OrderBook struct {
		Asks     [][]string `json:"asks"`
		Bids     [][]string `json:"bids"`
		MarketID string     `json:"market_id"`
	} `json:"order_book"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
