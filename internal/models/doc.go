// Package models defines the core domain models for the ledger.
//
// # Models
//
//   - Group: a set of members sharing one currency
//   - Expense / ExpenseSplit: a payment by one member and each participant's share of it
//   - Balance: one canonical pairwise debt row
//   - Settlement: a payment between two members that pays a debt down
//
// Derived values (NetPosition, SettlementInstruction, Discrepancy) are never
// persisted; they are computed from balances and history on demand.
//
// # Design Principles
//
//  1. All amounts are money.Money: integer minor units plus a currency code.
//  2. Use ID strings instead of pointers for relationships.
//  3. At most one Balance row exists per unordered member pair.
package models
