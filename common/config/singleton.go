package config

// package level manager used by the rest of the bot

var Singleton = NewManager()

func RegisterOption(name, desc string, defaultValue interface{}) *Option {
	return Singleton.RegisterOption(name, desc, defaultValue)
}

func AddSource(source Source) {
	Singleton.AddSource(source)
}

func Load() {
	Singleton.Load()
}
