// Package mysql stores completed task records in MySQL. The task_results
// table is versioned through the single-statement DDL files embedded from
// deploy/migrations, and every save replaces the table contents inside a
// single transaction.
package mysql
