// Command hoard stores and inspects AI-generated reference images.
package main

import "github.com/mesh-intelligence/hoard/internal/cli"

func main() {
	cli.Execute()
}
