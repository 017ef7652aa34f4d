package storygen

const storyPrompt = `You are a professional story writer. Create engaging and interesting short stories with good plot development. Write a short story about "%s" in around 200 words`

const scriptPrompt = `Convert stories into dialogue format and return JSON format with these requirements:
1. Convert any non-English text to English first
2. Separate narration and dialogues
3. Do not use asterisks (*) or any special formatting characters
4. Format:
{
  "scenes": [
    {
      "type": "narration",
      "text": "scene description or narration"
    },
    {
      "type": "dialogue",
      "character": "Character Name",
      "text": "dialogue content"
    }
  ]
}
5. Keep dialogues natural and concise
6. Add scene descriptions where needed
7. Maintain story flow and emotion
8. Use appropriate names for characters
Convert this story into script format:
%s`

const podcastPrompt = `You are a professional podcast content creator. Create engaging and informative podcast content that is suitable for a conversation between two hosts. Create a podcast discussion outline about "%s". The content should be informative and conversational.`

const podcastScriptPrompt = `Convert content into a natural English conversation between two podcast hosts (A and B). Requirements:
1. Format the response as JSON array of dialog objects
2. Each object should have 'host' (either 'A' or 'B') and 'text' fields
3. Keep the conversation natural and engaging
4. Convert any non-English content to English
Format example:
[
    {"host": "A", "text": "Welcome to our show..."},
    {"host": "B", "text": "Today we're discussing..."}
]
Convert this content into a podcast conversation:
%s`

const imagePromptSystem = `You are a professional image prompt engineer. Create concise but detailed image prompts that maintain consistency across a story.

Requirements:
1. Keep prompts under 75 words
2. Focus on key visual elements and maintain character/setting consistency
3. Include artistic style and mood
4. Avoid NSFW content
5. Use natural, descriptive language
6. Output in English only`

const imagePromptUser = `Story context:
%s
Create an image generation prompt for this scene while maintaining consistency with the story context: "%s"`

const contextPrompt = `Extract key story elements (characters, settings, themes) from the story sections. Keep it concise. Analyze these story sections and extract key elements:
%s`

const translatePodcastPrompt = `Translate the podcast script to Chinese. Keep the format:
1. Keep the Host A/B labels
2. Translate naturally and maintain the conversation style
3. Return in this format:
[Host A]
Chinese translation

[Host B]
Chinese translation
Translate this podcast script to Chinese:
%s`

const translateStoryPrompt = `Translate the story script to Chinese. Keep the format:
1. Keep the [Narration] and [Dialogue] labels
2. Translate naturally and maintain the story flow
3. Return in this format:
[Narration]
Chinese translation

[Dialogue]
Character Name:
Chinese translation
Translate this story script to Chinese:
%s`
