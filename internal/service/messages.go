package service

import "fmt"

// User-facing replies.
const (
	throttleReply = "⚠️ You're sending messages too quickly. Please wait a moment."

	unlinkedReply = "This chat is not connected to any support channel.\n" +
		"Please contact your vendor for assistance."

	defaultAutoReply = "Thank you for your message! 📬\n\nAn agent will respond shortly."

	photoReceivedReply    = "Photo received! An agent will review it shortly."
	documentReceivedReply = "Document received! An agent will review it shortly."

	helpReply = "📚 Available Commands\n\n" +
		"/start - Start the bot\n" +
		"/help - Show this help message\n" +
		"/status - Check if support is available\n\n" +
		"Simply send a message to reach our support team!"

	statusAvailableReply = "✅ Support Status\n\n" +
		"We're here to help! Send us a message and an agent will respond as soon as possible.\n\n" +
		"Average response time: < 2 hours"

	statusUnlinkedReply = "❓ This chat is not connected to any support channel."
)

func defaultWelcome(name string) string {
	return fmt.Sprintf("Hello %s! 👋\n\n"+
		"Welcome to our support channel. How can we help you today?\n\n"+
		"An agent will respond to your message shortly.", name)
}

func unlinkedWelcome(name string) string {
	return fmt.Sprintf("Hello %s! 👋\n\n"+
		"This bot is part of our CRM system.\n"+
		"If you're a customer, please contact your vendor for the correct support channel.", name)
}
