/*
Core runs the backtest pipeline.

# Module
  - feed worker: the single goroutine that drives everything below
  - strategy: sees every tick first, places orders on completed bars
  - order router: gates placements through the risk ledger and routes them to the matching engine
  - matching engine: fills resting orders against each tick
  - risk ledger: tracks last prices, positions and PnL
  - bar rollup: turns ticks into bars for the ledger and the strategy

# Produce
  - order status events to the trade stats, the trade log, the strategy and the event bus
  - periodic ledger snapshots to the event bus
*/
package core
