package conversation

// User-facing replies.
const (
	MsgFormatError      = "Sorry, I couldn't understand your BMI data. Please ensure it contains height, weight, BMI, and Machine ID in the correct format."
	MsgSelectProfile    = "It looks like you have existing profiles. Please select who is being tested by typing 'select UID-XXXXXXX':"
	MsgAskName          = "Welcome! To set up your profile, what is your full name?"
	MsgAskGender        = "Thanks, %s! What is your gender (Male/Female/Other)?"
	MsgAskAge           = "Got it! And finally, what is your age (e.g., 30)?"
	MsgRegistered       = "Great, %s! Your profile (ID: %s) has been created. Please make the payment now to view your full BMI results."
	MsgSelected         = "Thanks! We're ready to process your BMI results. Please make the payment now to view your full results."
	MsgInvalidName      = "Please provide a valid full name."
	MsgInvalidGender    = "Please provide a valid gender (Male, Female, or Other)."
	MsgInvalidAge       = "Please provide a valid age (a number between 1 and 120)."
	MsgUnknownProfile   = "Invalid user ID '%s' or it does not belong to your mobile number. Please try again or resend your BMI data."
	MsgSelectReminder   = "Please select a user by typing 'select UID-XXXXXXX' or resend 'sehat_bmi<encrypted_data>' to start over."
	MsgSessionMismatch  = "Payment confirmation failed. Invalid session ID. Please try again or contact support."
	MsgAwaitingPayment  = "Waiting for payment confirmation. Please complete the payment or send 'payment_confirmed_<session_id>' if already done."
	MsgPaymentSuccess   = "Payment successful. Your results are sent!"
	MsgAlreadyConfirmed = "This payment has already been confirmed and your results were sent (Report ID: %d). Send 'sehat_bmi<encrypted_data>' to start a new measurement."
	MsgStillProcessing  = "Your previous message is still being processed. Please wait a moment and try again."
	MsgLostTrack        = "It seems we lost track of our conversation. Please send 'sehat_bmi<encrypted_data>' to restart."
	MsgHelp             = "I'm a SehatBot. Send 'sehat_bmi<encrypted_data>' to update BMI, or 'help' for assistance."
	MsgApology          = "An internal error occurred. Our team has been notified. Please try again later."

	msgSummary = "Hi %s (ID: %s),\n" +
		"Your payment is confirmed, and your BMI data is updated! " +
		"Your profile: Age %d, Gender %s.\n" +
		"Latest BMI: %.2f (Height: %v cm, Weight: %v kg).\n" +
		"Machine ID: %s.\n" +
		"Your current wallet balance is: %s.\n" +
		"Report ID: %d."
)
