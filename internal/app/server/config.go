package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	IdleTimeout time.Duration

	MatchmakingMaxWait       time.Duration
	MatchmakingSweepInterval time.Duration

	ReadyTimeout   time.Duration
	BattleDuration time.Duration

	GiftFeeRate float64
	AdminIds    []string

	AwsRegion          string
	CognitoUserPoolId  string
	RewardFunctionName string
}

func NewConfig() Config {
	var config Config

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/server")
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	envFiles := []string{
		"./configs/aws/base.env",
		"./configs/aws/cognito.env",
		"./configs/aws/lambda.env",
	}
	err = loadEnvFiles(envFiles)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	config.Port = viper.GetString("Server.Port")
	config.IdleTimeout = mustParseDuration("Server.IdleTimeout")
	config.MatchmakingMaxWait = mustParseDuration("Matchmaking.MaxWait")
	config.MatchmakingSweepInterval = mustParseDuration("Matchmaking.SweepInterval")
	config.ReadyTimeout = mustParseDuration("Battle.ReadyTimeout")
	config.BattleDuration = mustParseDuration("Battle.Duration")
	config.GiftFeeRate = viper.GetFloat64("Gift.FeeRate")
	config.AdminIds = viper.GetStringSlice("Admin.UserIds")
	config.AwsRegion = viper.GetString("AWS_REGION")
	config.CognitoUserPoolId = viper.GetString("COGNITO_USER_POOL_ID")
	config.RewardFunctionName = viper.GetString("REWARD_FUNCTION_NAME")

	return config
}

func mustParseDuration(key string) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
	return d
}

func loadEnvFiles(filenames []string) error {
	for _, file := range filenames {
		viper.SetConfigFile(file)
		viper.SetConfigType("env")
		viper.AutomaticEnv()

		err := viper.MergeInConfig()
		if err != nil {
			return err
		}
	}
	return nil
}
