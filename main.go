package main

import "github.com/vibast-solutions/ms-go-payment-intents/cmd"

func main() {
	cmd.Execute()
}
