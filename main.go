package main

import "github.com/vibast-solutions/ms-go-checkout-payments/cmd"

func main() {
	cmd.Execute()
}
