package domain

// Language is a BCP-47 locale tag understood by both external services.
type Language string

const (
	English    Language = "en-US"
	Urdu       Language = "ur-PK"
	Hindi      Language = "hi-IN"
	Arabic     Language = "ar-SA"
	Spanish    Language = "es-ES"
	French     Language = "fr-FR"
	German     Language = "de-DE"
	Chinese    Language = "zh-CN"
	Japanese   Language = "ja-JP"
	Portuguese Language = "pt-BR"
	Russian    Language = "ru-RU"
	Turkish    Language = "tr-TR"
)

// Languages lists every supported locale in picker order.
var Languages = []Language{
	English, Urdu, Hindi, Arabic, Spanish, French,
	German, Chinese, Japanese, Portuguese, Russian, Turkish,
}

var languageLabels = map[Language]string{
	English:    "English (US)",
	Urdu:       "Urdu (پاکستان)",
	Hindi:      "Hindi (हिन्दी)",
	Arabic:     "Arabic (العربية)",
	Spanish:    "Spanish (Español)",
	French:     "French (Français)",
	German:     "German (Deutsch)",
	Chinese:    "Chinese (中文)",
	Japanese:   "Japanese (日本語)",
	Portuguese: "Portuguese (Português)",
	Russian:    "Russian (Русский)",
	Turkish:    "Turkish (Türkçe)",
}

var recordingScripts = map[Language]string{
	English:    "The quick brown fox jumps over the lazy dog. Voice synthesis is the future of communication, and I am training my personal neural profile to speak for me.",
	Urdu:       "مصنوعی ذہانت مواصلات کا مستقبل ہے، اور میں اپنا ذاتی آواز کا پروفائل تربیت دے رہا ہوں۔",
	Hindi:      "आर्टिफिशियल इंटेलिजेंस संचार का भविष्य है, और मैं बोलने के लिए अपना व्यक्तिगत आवाज़ प्रोफ़ाइल तैयार कर रहा हूँ।",
	Arabic:     "الذكاء الاصطناعي هو مستقبل الاتصال، وأنا أقوم بتدريب ملف صوتي شخصي للتحدث نيابة عني.",
	Spanish:    "La inteligencia artificial es el futuro de la comunicación, y estoy entrenando mi perfil de voz personal.",
	French:     "L'intelligence artificielle est l'avenir de la communication, et je forme mon profil vocal personnel.",
	German:     "Künstliche Intelligenz ist die Zukunft der Kommunikation, und ich trainiere mein persönliches Sprachprofil.",
	Chinese:    "人工智能是沟通的未来，我正在训练我的个人语音概况。",
	Japanese:   "人工知能はコミュニケーションの未来であり、私は自分のパーソナルボイスプロフィールをトレーニングしています。",
	Portuguese: "A inteligência artificial é o futuro da comunicação e estou treinando meu perfil de voz pessoal.",
	Russian:    "Искусственный интеллект — это будущее общения, и я тренирую свой персональный голосовой профиль.",
	Turkish:    "Yapay zeka iletişimin geleceğidir ve ben kişisel ses profilimi eğitiyorum.",
}

var previewTexts = map[Language]string{
	English:    "Voice signal check. Studio calibration complete.",
	Urdu:       "آواز کا سگنل چیک۔ اسٹوڈیو کیلیبریشن مکمل ہے۔",
	Hindi:      "वॉइस सिग्नल चेक। स्टूडियो कैलिब्रेशन पूरा हुआ।",
	Arabic:     "فحص إشارة الصوت. اكتملت معايرة الاستوديو.",
	Spanish:    "Prueba de señal de voz. Calibración del estudio completa.",
	French:     "Vérification du signal vocal. Calibrage du studio terminé.",
	German:     "Sprachsignalprüfung. Studiokalibrierung abgeschlossen.",
	Chinese:    "语音信号检查。录音室校准完成。",
	Japanese:   "音声信号チェック。スタジオのキャリブレーションが完了しました。",
	Portuguese: "Verificação de sinal de voz. Calibração de estúdio concluída.",
	Russian:    "Проверка голосового сигнала. Калибровка студии завершена.",
	Turkish:    "Ses sinyali kontrolü. Stüdyo kalibrasyonu tamamlandı.",
}

// Valid reports whether l is one of the supported locales.
func (l Language) Valid() bool {
	_, ok := languageLabels[l]
	return ok
}

// Label returns the picker label, or the raw tag for unknown locales.
func (l Language) Label() string {
	if s, ok := languageLabels[l]; ok {
		return s
	}
	return string(l)
}

// RecordingScript is the passage the user reads aloud while capturing a
// reference voice. Unknown locales fall back to English.
func (l Language) RecordingScript() string {
	if s, ok := recordingScripts[l]; ok {
		return s
	}
	return recordingScripts[English]
}

// PreviewText is the short calibration line spoken by a voice preview.
func (l Language) PreviewText() string {
	if s, ok := previewTexts[l]; ok {
		return s
	}
	return previewTexts[English]
}
