// Command archivist manages a schema-driven entity archive.
package main

import "github.com/rfowler1994/project-archivist/internal/cli"

func main() {
	cli.Execute()
}
