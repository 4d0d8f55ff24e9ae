// Command pg-relsub infers relationships from a PostgreSQL schema and plans
// subscription filters for nested queries.
package main

import "github.com/hurou927/pg-relsub/cmd"

func main() {
	cmd.Execute()
}
