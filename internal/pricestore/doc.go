// Package pricestore keeps the shared market price of each good in Redis.
//
// Every good maps to one plain string key holding the price. There are no
// transactions and no TTLs: concurrent writers race and the last SET wins.
package pricestore
