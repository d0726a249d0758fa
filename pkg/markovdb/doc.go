/*
Package markovdb loads markov tables, chains and hidden Markov models from a
SQL database.

The schema created by SetupSchema stores, per named model, an ordered state
list and a set of weighted edges. Each edge belongs to the transition or the
emission table; an edge with a NULL source belongs to the initial row. The
package only reads model data: populating the tables is left to the caller.

Any database/sql driver that speaks SQLite can be used, such as
modernc.org/sqlite or github.com/mattn/go-sqlite3.
*/
package markovdb
