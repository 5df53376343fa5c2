package pipeline

const systemPrompt = `You are NutriVision, a helpful nutrition assistant. Analyze the nutritional information you are given, but do not add any values to it. Give short feedback on the nutritional values and suggest better and healthier options.`

const extractFoodsPrompt = `List the foods mentioned in the text below. Only include items literally present in the text, normalized to their singular form. Answer with a comma-separated list and nothing else. If no food is mentioned, answer exactly: none

Text: %s`

const extractRecipeNamesPrompt = `Which recipes or dishes does the user ask for in the text below? Answer with a comma-separated list of recipe names and nothing else. If there are none, answer exactly: none

Text: %s`

const extractRecipeTermsPrompt = `List the individual dishes and ingredients mentioned in the text below, each as a short search term (for example "lasagna noodles"). Answer with a comma-separated list and nothing else. If there are none, answer exactly: none

Text: %s`

const estimateDisclaimer = `**DISCLAIMER** Nutritional information not found in the reference database. These values might not be correct!`

const imageTemplate = `The user uploaded a picture of a meal. The image recognition service identified these items:

---
%s
---
%s
User profile:
%s

User message: %s

Comment on the recognized foods and their macronutrients. Repeat verified values exactly as provided. If you give values for items without data, mark them with this disclaimer: ` + estimateDisclaimer

const nutritionTemplate = `Here is the exact nutritional data per 100 g retrieved for the foods in the user's message. Use this information only; do not estimate or add missing values.

---
%s
---
%s
User profile:
%s

User message: %s

Repeat these values exactly as provided before any analysis. If you add values for foods that have no data, mark them with this disclaimer: ` + estimateDisclaimer

const recipeTemplate = `The user asked for a recipe. These recipes were found in the recipe collection:

---
%s
---

User profile:
%s

User message: %s

Base your answer on these recipes and adapt them to the user's profile where needed.`

const recipeBestEffortTemplate = `The user asked for a recipe, but nothing matching was found in the recipe collection.

User profile:
%s

User message: %s

Suggest a suitable recipe from general knowledge and say clearly that it does not come from the recipe collection.`

const generalTemplate = `User profile:
%s

User message: %s`
