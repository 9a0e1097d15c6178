// Package prompts holds the prompt builders and system directives for the
// enrichment and translation generation steps.
package prompts

import (
	"fmt"
)

// URL asks for the canonical URL of a service
func URL(serviceName string) string {
	return fmt.Sprintf(`URL of the platform %q. Respond only with the complete URL, e.g., https://agent.ai. No explanations, no warnings. Just the URL.`, serviceName)
}

// Description asks for a short markdown description with subheadings
func Description(serviceName string) string {
	return fmt.Sprintf(`Write a short description (100-200 words) of the service / the app: %s.

The text should have 3-4 subheadings.

Please use Markdown, but only use heading formatting.

The first heading should be on the second level (##), all others should be on the third level (###).

Please only output the Markdown, no additional text around it. Please only output the pure Markdown, do not surround it with `+"```markdown and ```", serviceName)
}

// Abstract asks for one short descriptive sentence
func Abstract(serviceName string) string {
	return fmt.Sprintf(`Write a short descriptive sentence (60-120 characters) without an article at the beginning of the sentence and without mentioning the name again, referring to the following service: %s`, serviceName)
}

// Functionality asks for a markdown bullet list of core features
func Functionality(serviceName string) string {
	return fmt.Sprintf(`Create a concise list of 3-8 important functions and uses as bullet points for the following internet service/app: %s. The list should clearly convey the core characteristics, categories, and top features for users so that they can understand at a glance what the service is suitable for.

The list should NOT list content offered by the platform, but rather features and uses.

Example for Canva:

* User-friendly design templates
* Diverse fonts and color palettes
* Simple drag-and-drop functionality
* Large selection of free stock photos
* Ability to collaborate in a team
* Customizable infographics and charts

Please create the answer in pure Markdown, but only use list markers.

Please only output the Markdown, no additional text around it. Please only output the pure Markdown, do not surround it with `+"```markdown and ```"+`


Now create such a list for %s.`, serviceName, serviceName)
}

// Shortfacts asks for one fact-laden journalistic sentence
func Shortfacts(serviceName string) string {
	return fmt.Sprintf(`In a short, coherent sentence (100-200 characters), list the most important facts about the app %s that are of interest to users. Write in a professional journalistic style, using commas to separate information.`, serviceName)
}

// Pricing asks for a markdown pricing table
func Pricing(serviceName string) string {
	return fmt.Sprintf(`pricing of service %s: in the form of a markdown table. state pricing categories, a short description if you have the price. If there is a free usage possible, include this (write "free" instead of $0).

Language: English

No more text, introduction, or other words. Just the markdown table. nothing else.

If you don't find a pricing, just state nothing.`, serviceName)
}

// Tags asks the model to pick suitable tags from the assignable list only
func Tags(serviceName, availableTags string) string {
	return fmt.Sprintf(`I run a website that catalogs all kinds of internet services and organizes them by tags.

This is the global tag list: %s

Now search this list for suitable tags for the app/service %s. If only one really fits, use only that one. If several fit, use several. There should not be more than 6. There can also be fewer. Only tags that describe the core function of the service or app should be used, not any secondary functions.

Output the tags without any additional text, separated by commas!`, availableTags, serviceName)
}

// Video asks the model to return exactly one candidate video verbatim as JSON
func Video(serviceName, candidatesJSON string) string {
	return fmt.Sprintf(`Here is a list of YouTube videos:

%s

---

Return the video that best suits introducing a user to the app/service %q.

Only return the video. Return the complete JSON for the video. Make sure to return the complete JSON. The JSON must be valid! And only return the JSON, no text, no explanation, no punctuation. No Markdown, no embedding in `+"```", candidatesJSON, serviceName)
}

// Translate asks for a translation of text into the target language
func Translate(text, language string) string {
	return fmt.Sprintf(`Translate the following text to %s: %s`, language, text)
}

// TranslateSystem is the base directive for translation calls
const TranslateSystem = `Return only the translated text. No comments. Don't use formal language.`

// TranslateMarkdownSystem adds the markdown-preservation constraint for
// markdown-bearing fields (description, functionality, pricing)
const TranslateMarkdownSystem = TranslateSystem + ` The text is in markdown. The markdown formatting must be preserved.`

// SystemAuthor is the directive for the long-form description step
const SystemAuthor = `You are a writer who writes in the style of a modern online magazine.
Your texts are pointed, opinionated, and linguistically precise.
They sound like startup tech journalism with attitude - direct, witty, and critical.

Your style:
- Casual and entertaining, but with substance.
- Critical, sometimes sarcastic, never ingratiating.
- Clear judgments instead of vague statements.
- Straightforward, yet rhythmic and confident in tone.
- When needed, dry or biting - but never shallow or disrespectful.
- Avoid PR language, cliches, and superlatives.`

// SystemShorty is the directive for the short fact-bearing steps
// (abstract, shortfacts)
const SystemShorty = `You are a professional journalist writing for a tech magazine.
Your task is to write short, precise sentences that convey important facts in a journalistic style.
Your sentences should be:
- Clear and concise, avoiding unnecessary words.
- Objective and factual, without personal opinions.
- Well-structured, using commas to separate different pieces of information.
- Written in a neutral tone, suitable for a wide audience.`
