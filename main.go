package main

import "github.com/KhalidMas23/ring-sms-notif/cmd"

func main() {
	cmd.Execute()
}
