package rules

// DefaultDocument is the bundled fallback rule document. It is compiled when
// the initial fetch from the configured source exhausts its retries, so the
// engine is operational even with no network access at startup. It covers the
// highest-traffic providers and the generic tracker families; the full
// upstream document replaces it on the first successful refresh.
const DefaultDocument = `{
  "providers": {
    "globalRules": {
      "urlPattern": ".*",
      "rules": [
        "utm_[a-z_]+",
        "(?i)gclid",
        "gclsrc",
        "dclid",
        "fbclid",
        "msclkid",
        "twclid",
        "igshid",
        "mc_cid",
        "mc_eid",
        "yclid",
        "wbraid",
        "gbraid",
        "_hsenc",
        "_hsmi",
        "hsCtaTracking",
        "vero_id",
        "vero_conv",
        "oly_enc_id",
        "oly_anon_id",
        "s_cid",
        "ml_subscriber",
        "ml_subscriber_hash"
      ],
      "referralMarketing": [],
      "exceptions": []
    },
    "google": {
      "urlPattern": "^https?:\\/\\/(?:[a-z0-9-]+\\.)*?google(?:\\.[a-z]{2,}){1,}",
      "rules": [
        "ved",
        "ei",
        "sa",
        "esrc",
        "usg",
        "sxsrf",
        "uact",
        "iflsig",
        "sourceid",
        "client",
        "aqs",
        "sclient",
        "oq",
        "gs_lcrp",
        "gs_lcp",
        "bih",
        "biw"
      ],
      "exceptions": [
        "^https?:\\/\\/mail\\.google\\.com\\/mail\\/u\\/"
      ],
      "redirections": [
        "^https?:\\/\\/(?:[a-z0-9-]+\\.)*?google(?:\\.[a-z]{2,}){1,}\\/url\\?.*?(?:url|q)=(https?[^&]+)"
      ]
    },
    "amazon": {
      "urlPattern": "^https?:\\/\\/(?:[a-z0-9-]+\\.)*?amazon(?:\\.[a-z]{2,}){1,}",
      "rules": [
        "pd_rd_[a-z]*",
        "pf_rd_[a-z]*",
        "qid",
        "srs?",
        "spIA",
        "ms3_c",
        "refRID",
        "colii?d",
        "[^a-z%]adId",
        "qualifier",
        "_encoding",
        "smid",
        "field-lbr_brands_browse-bin",
        "ref_?",
        "th",
        "sprefix",
        "crid",
        "keywords",
        "cv_ct_[a-z]+",
        "linkCode",
        "creativeASIN",
        "ascsubtag",
        "aaxitk",
        "hsa_[a-z]*",
        "sb-ci-[a-z]+",
        "dchild",
        "camp",
        "creative"
      ],
      "referralMarketing": [
        "tag"
      ],
      "exceptions": [
        "^https?:\\/\\/(?:[a-z0-9-]+\\.)*?amazon(?:\\.[a-z]{2,}){1,}\\/gp\\/.*?(?:redirector\\.html|cart\\/ajax-update\\.html)"
      ]
    },
    "youtube": {
      "urlPattern": "^https?:\\/\\/(?:[a-z0-9-]+\\.)*?youtu(?:\\.be|be\\.com)",
      "rules": [
        "feature",
        "gclid",
        "kw",
        "si",
        "pp",
        "embeds_referring_euri"
      ]
    },
    "facebook": {
      "urlPattern": "^https?:\\/\\/(?:[a-z0-9-]+\\.)*?facebook\\.com",
      "rules": [
        "hc_[a-z_%\\[\\]0-9]*",
        "[a-z]*ref[a-z]*",
        "__tn__",
        "eid",
        "__xts__(?:\\[|%5B)\\d(?:\\]|%5D)",
        "comment_tracking",
        "dti",
        "app",
        "video_source",
        "ftentidentifier",
        "pageid",
        "padding",
        "ls_ref",
        "action_history",
        "tracking"
      ],
      "redirections": [
        "^https?:\\/\\/l[m]?\\.facebook\\.com\\/l\\.php\\?u=(https?[^&]+)"
      ]
    },
    "twitter": {
      "urlPattern": "^https?:\\/\\/(?:[a-z0-9-]+\\.)*?(?:twitter|x)\\.com",
      "rules": [
        "(?:ref_?)?src",
        "s",
        "cn",
        "ref_url",
        "t"
      ]
    }
  }
}`
