// Package integration contains the platform synchronization bounded context.
// It keeps one merchant SKU consistent across the SmartStore marketplace and
// the Shopify storefront.
//
// Key concepts:
//   - ProductMapping: the SKU-keyed join between both platforms' identifiers
//   - InventoryTransaction: append-only record of every quantity change
//   - SyncJob: one background run and its aggregate counts
//   - EcommercePlatform: port implemented by each platform adapter
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
