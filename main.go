package main

import "github.com/frahmantamala/account-registry/cmd"

func main() {
	cmd.Execute()
}
