// Package api provides the upstream clients for the two Taiwan equity venues.
//
// Endpoints:
//   - Listed (TWSE): GET  https://www.twse.com.tw/rwd/zh/afterTrading/STOCK_DAY
//   - OTC (TPEx):    POST https://www.tpex.org.tw/www/zh-tw/afterTrading/tradingStock
//
// Every HTTP attempt goes through an Executor, which injects the outbound
// endpoint (proxy) when one is supplied and never follows redirects. The
// Client layers retry with jittered exponential backoff, endpoint rotation,
// adaptive pacing and a per-market circuit breaker on top of it.
package api
